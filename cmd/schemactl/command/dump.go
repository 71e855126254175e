package command

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/exporter"
	"github.com/cayleygraph/catalog/schema"
)

const (
	flagDump       = "dump"
	flagDumpFormat = "dump_format"
	flagNamespace  = "namespace"

	formatJSON = "json"
)

func NewDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the schema definition to a file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString(flagDump)
			typ, _ := cmd.Flags().GetString(flagDumpFormat)
			ns, _ := cmd.Flags().GetString(flagNamespace)
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return dumpSchema(cmd.OutOrStdout(), h.Catalog, path, typ, ns)
			})
		},
	}
	cmd.Flags().StringP(flagDump, "o", "-", `file to dump the schema to (".gz" supported, "-" for stdout)`)
	var names []string
	for _, f := range quad.Formats() {
		if f.Writer != nil {
			names = append(names, f.Name)
		}
	}
	cmd.Flags().String(flagDumpFormat, "", `format to use instead of auto-detection ("`+formatJSON+`", "`+strings.Join(names, `", "`)+`")`)
	cmd.Flags().String(flagNamespace, exporter.DefaultNamespace, "IRI prefix of exported quads")
	return cmd
}

// dumpSchema writes either the JSON definition or the quad form of the
// catalog. The format follows the file extension unless typ is set.
func dumpSchema(stdout io.Writer, c *schema.Catalog, path, typ, ns string) error {
	var w io.Writer = stdout
	if path == "-" {
		clog.Infof("writing schema to stdout")
	} else {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "could not create file %q", path)
		}
		defer f.Close()
		w = f
		clog.Infof("writing schema to file %q", path)
	}

	ext := filepath.Ext(path)
	if ext == ".gz" {
		ext = filepath.Ext(strings.TrimSuffix(path, ext))
		gz := gzip.NewWriter(w)
		defer gz.Close()
		w = gz
	}
	if typ == "" {
		if ext == ".json" || path == "-" {
			typ = formatJSON
		} else if f := quad.FormatByExt(ext); f != nil {
			typ = f.Name
		} else {
			typ = formatJSON
		}
	}
	if typ == formatJSON {
		return exporter.ExportJSON(w, c.Definition())
	}

	format := quad.FormatByName(typ)
	if format == nil {
		return fmt.Errorf("unsupported format: %q", typ)
	} else if format.Writer == nil {
		return fmt.Errorf("encoding in %s format is not supported", typ)
	}
	qw := format.Writer(w)
	defer qw.Close()
	exp := exporter.NewExporter(qw, ns)
	if err := exp.ExportSnapshot(c.Snapshot()); err != nil {
		return err
	} else if err = qw.Close(); err != nil {
		return err
	}
	clog.Infof("%d quads were written", exp.Count())
	return nil
}
