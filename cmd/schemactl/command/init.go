package command

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/internal/decompressor"
	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/store"
)

const flagLoad = "load"

func NewInitDatabaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty catalog.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDatabase(); errors.Is(err, store.ErrDatabaseExists) {
				clog.Infof("database already initialized, skipping init")
			} else if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				load, _ := cmd.Flags().GetString(flagLoad)
				if load == "" {
					return nil
				}
				def, err := readDefinition(load)
				if err != nil {
					return err
				}
				return importDefinition(ctx, h.Catalog, def)
			})
		},
	}
	cmd.Flags().StringP(flagLoad, "i", "", `schema definition to import after initialization (gzip, bzip2 and snappy input detected, "-" for stdin)`)
	return cmd
}

func readDefinition(path string) (*schema.Definition, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open definition %q", path)
		}
		defer f.Close()
		r = f
	}
	dr, err := decompressor.New(r)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(dr)
	if err != nil {
		return nil, err
	}
	return schema.UnmarshalDefinition(data)
}

// importDefinition declares everything a definition holds on a live catalog.
// Classes get fresh partitions; classes that already exist are kept as they are.
func importDefinition(ctx context.Context, c *schema.Catalog, def *schema.Definition) error {
	byName := make(map[string]schema.ClassDef, len(def.Classes))
	for _, cd := range def.Classes {
		byName[cd.Name] = cd
	}
	created := make(map[string]bool)
	visiting := make(map[string]bool)
	var declare func(cd schema.ClassDef) error
	declare = func(cd schema.ClassDef) error {
		if created[cd.Name] {
			return nil
		} else if visiting[cd.Name] {
			return schema.Mark(errors.Newf("class %q extends itself", cd.Name), schema.ErrCyclicInheritance)
		}
		visiting[cd.Name] = true
		for _, s := range cd.SuperClasses {
			if sd, ok := byName[s]; ok {
				if err := declare(sd); err != nil {
					return err
				}
			}
		}
		created[cd.Name] = true
		if c.ExistsClass(cd.Name) {
			clog.Infof("class %q already exists, skipping", cd.Name)
			return nil
		}
		return c.CreateClass(ctx, cd.Name, schema.ClassOptions{
			SuperClasses: cd.SuperClasses,
			Partitions:   len(cd.Partitions),
			Abstract:     cd.Abstract,
		})
	}
	for _, cd := range def.Classes {
		if err := declare(cd); err != nil {
			return err
		}
	}
	for _, cd := range def.Classes {
		if err := importClassAttrs(ctx, c, cd); err != nil {
			return err
		}
	}
	for _, cd := range def.Classes {
		for _, pd := range cd.Properties {
			if err := importProperty(ctx, c, cd.Name, pd); err != nil {
				return errors.Wrapf(err, "property %s.%s", cd.Name, pd.Name)
			}
		}
	}
	for _, id := range def.Indexes {
		if c.Snapshot().Index(id.Name) != nil {
			continue
		}
		if err := c.CreateIndex(ctx, id.Name, id.Class, id.Type, id.Fields...); err != nil {
			return err
		}
	}
	clog.Infof("imported %d classes and %d indexes", len(def.Classes), len(def.Indexes))
	return nil
}

func importClassAttrs(ctx context.Context, c *schema.Catalog, cd schema.ClassDef) error {
	var attrs [][2]string
	if cd.Description != "" {
		attrs = append(attrs, [2]string{"description", cd.Description})
	}
	if cd.Strict {
		attrs = append(attrs, [2]string{"strict", "true"})
	}
	if cd.Selection != "" {
		attrs = append(attrs, [2]string{"partitionselection", cd.Selection})
	}
	for _, k := range sortedKeys(cd.Custom) {
		attrs = append(attrs, [2]string{"custom", k + "=" + cd.Custom[k]})
	}
	for _, kv := range attrs {
		attr, err := schema.ParseClassAttr(kv[0])
		if err != nil {
			return err
		}
		if err := c.AlterClass(ctx, cd.Name, attr, kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func importProperty(ctx context.Context, c *schema.Catalog, class string, pd schema.PropertyDef) error {
	if cl := c.Snapshot().Class(class); cl != nil && cl.Property(pd.Name) != nil {
		return nil
	}
	err := c.CreateProperty(ctx, class, pd.Name, pd.Type, schema.PropertyOptions{
		LinkedType:  pd.LinkedType,
		LinkedClass: pd.LinkedClass,
	})
	if err != nil {
		return err
	}
	attrs := []struct {
		name, value string
		set         bool
	}{
		{"mandatory", "true", pd.Mandatory},
		{"notnull", "true", pd.NotNull},
		{"readonly", "true", pd.ReadOnly},
		{"min", pd.Min, pd.Min != ""},
		{"max", pd.Max, pd.Max != ""},
		{"default", pd.Default, pd.Default != ""},
		{"regexp", pd.Regexp, pd.Regexp != ""},
		{"collate", pd.Collate, pd.Collate != ""},
		{"description", pd.Description, pd.Description != ""},
	}
	for _, k := range sortedKeys(pd.Custom) {
		attrs = append(attrs, struct {
			name, value string
			set         bool
		}{"custom", k + "=" + pd.Custom[k], true})
	}
	for _, a := range attrs {
		if !a.set {
			continue
		}
		attr, err := schema.ParsePropertyAttr(a.name)
		if err != nil {
			return err
		}
		if err := c.AlterProperty(ctx, class, pd.Name, attr, a.value); err != nil {
			return err
		}
	}
	return nil
}
