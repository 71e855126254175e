package command

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	chttp "github.com/cayleygraph/catalog/internal/http"
	"github.com/cayleygraph/catalog/schema"
)

func NewClassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage the classes of the catalog.",
	}
	cmd.AddCommand(
		newClassCreateCmd(),
		newClassDropCmd(),
		newClassTruncateCmd(),
		newClassListCmd(),
		newClassDescribeCmd(),
		newClassAlterCmd(),
		newClassSuperCmd("add-super", "Add a superclass to a class.", (*schema.Catalog).AddSuperClass),
		newClassSuperCmd("remove-super", "Remove a superclass from a class.", (*schema.Catalog).RemoveSuperClass),
	)
	return cmd
}

func newClassCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a class.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			supers, _ := cmd.Flags().GetStringSlice("super")
			parts, _ := cmd.Flags().GetInt("partitions")
			abstract, _ := cmd.Flags().GetBool("abstract")
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				err := h.Catalog.CreateClass(ctx, args[0], schema.ClassOptions{
					SuperClasses: supers,
					Partitions:   parts,
					Abstract:     abstract,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "class %s created\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("super", nil, "superclasses of the new class")
	cmd.Flags().Int("partitions", 0, "number of partitions to allocate (0 uses the configured default)")
	cmd.Flags().Bool("abstract", false, "create an abstract class without partitions")
	return cmd
}

func newClassDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a class and its partitions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.DropClass(ctx, args[0])
			})
		},
	}
}

func newClassTruncateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truncate <name>",
		Short: "Delete the records of a class.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poly, _ := cmd.Flags().GetBool("polymorphic")
			unsafe, _ := cmd.Flags().GetBool("unsafe")
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				n, err := h.Catalog.TruncateClass(ctx, args[0], poly, unsafe)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d records removed from %s\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().Bool("polymorphic", false, "also truncate the subclasses")
	cmd.Flags().Bool("unsafe", false, "allow truncating vertex and edge classes")
	return cmd
}

func newClassListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all classes.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSUPERCLASSES\tPARTITIONS\tABSTRACT")
				for _, c := range h.Catalog.Snapshot().Classes() {
					s := chttp.Summarize(c)
					fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", s.Name, strings.Join(s.SuperClasses, ","), joinInts(s.Partitions), s.Abstract)
				}
				return tw.Flush()
			})
		},
	}
}

func newClassDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name>",
		Short: "Show a class with its properties and indexes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				c, err := h.Catalog.Class(ctx, args[0])
				if err != nil {
					return err
				}
				return writeClass(cmd.OutOrStdout(), chttp.Describe(c))
			})
		},
	}
}

func writeClass(w io.Writer, info chttp.ClassInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Class:\t%s\n", info.Name)
	if info.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", info.Description)
	}
	fmt.Fprintf(tw, "Superclasses:\t%s\n", strings.Join(info.SuperClasses, ", "))
	fmt.Fprintf(tw, "Subclasses:\t%s\n", strings.Join(info.SubClasses, ", "))
	fmt.Fprintf(tw, "Partitions:\t%s\n", joinInts(info.Partitions))
	fmt.Fprintf(tw, "Polymorphic:\t%s\n", joinInts(info.Polymorphic))
	fmt.Fprintf(tw, "Selection:\t%s\n", info.Selection)
	fmt.Fprintf(tw, "Abstract:\t%v\n", info.Abstract)
	fmt.Fprintf(tw, "Strict:\t%v\n", info.Strict)
	for _, k := range sortedKeys(info.Custom) {
		fmt.Fprintf(tw, "Custom %s:\t%s\n", k, info.Custom[k])
	}
	if len(info.Properties) != 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "PROPERTY\tTYPE\tLINKED\tOWNER\tID")
		for _, p := range info.Properties {
			linked := p.LinkedClass
			if linked == "" {
				linked = p.LinkedType
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.Name, p.Type, linked, p.Owner, p.ID)
		}
	}
	if len(info.Indexes) != 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Indexes:\t%s\n", strings.Join(info.Indexes, ", "))
	}
	return tw.Flush()
}

func newClassAlterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alter <name> <attribute> <value>",
		Short: "Change an attribute of a class.",
		Long: "Change an attribute of a class. Attributes are: name, description, abstract, strict, " +
			"superclasses, custom (as key=value) and partitionselection.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			attr, err := schema.ParseClassAttr(args[1])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.AlterClass(ctx, args[0], attr, args[2])
			})
		},
	}
}

func newClassSuperCmd(use, short string, fn func(*schema.Catalog, context.Context, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name> <superclass>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return fn(h.Catalog, ctx, args[0], args[1])
			})
		},
	}
}

func joinInts(ids []int32) string {
	s := make([]string, 0, len(ids))
	for _, id := range ids {
		s = append(s, fmt.Sprint(id))
	}
	return strings.Join(s, ",")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
