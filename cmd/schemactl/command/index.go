package command

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cayleygraph/catalog/store"
)

func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the indexes of the catalog.",
	}
	cmd.AddCommand(newIndexCreateCmd(), newIndexDropCmd(), newIndexListCmd())
	return cmd
}

func newIndexCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name> <class> <field>...",
		Short: "Index one or more properties of a class.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				err := h.Catalog.CreateIndex(ctx, args[0], args[1], store.IndexType(strings.ToUpper(typ)), args[2:]...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index %s created\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().String("type", string(store.NotUnique), `index type ("UNIQUE" or "NOTUNIQUE")`)
	return cmd
}

func newIndexDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop an index.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.DropIndex(ctx, args[0])
			})
		},
	}
}

func newIndexListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all indexes.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tCLASS\tTYPE\tFIELDS")
				for _, idx := range h.Catalog.Snapshot().Indexes() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", idx.Name, idx.Class, idx.Type, strings.Join(idx.Fields, ","))
				}
				return tw.Flush()
			})
		},
	}
}
