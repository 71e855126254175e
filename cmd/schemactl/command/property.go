package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/types"
)

func NewPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "property",
		Aliases: []string{"prop"},
		Short:   "Manage the properties of a class.",
	}
	cmd.AddCommand(
		newPropertyAddCmd(),
		newPropertyDropCmd(),
		newPropertyAlterCmd(),
		newPropertyRenameCmd(),
		newPropertyRetypeCmd(),
	)
	return cmd
}

func newPropertyAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <class> <name> <type>",
		Short: "Declare a property on a class.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := types.ParseTag(args[2])
			if err != nil {
				return err
			}
			opts := schema.PropertyOptions{}
			if lt, _ := cmd.Flags().GetString("linked-type"); lt != "" {
				if opts.LinkedType, err = types.ParseTag(lt); err != nil {
					return err
				}
			}
			opts.LinkedClass, _ = cmd.Flags().GetString("linked-class")
			opts.Unsafe, _ = cmd.Flags().GetBool("unsafe")
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				if err := h.Catalog.CreateProperty(ctx, args[0], args[1], t, opts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "property %s.%s created\n", args[0], args[1])
				return nil
			})
		},
	}
	cmd.Flags().String("linked-type", "", "element type of an embedded collection")
	cmd.Flags().String("linked-class", "", "class referenced by a link or embedded property")
	cmd.Flags().Bool("unsafe", false, "skip the check of values already stored under this name")
	return cmd
}

func newPropertyDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <class> <name>",
		Short: "Remove a property from a class.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.DropProperty(ctx, args[0], args[1])
			})
		},
	}
}

func newPropertyAlterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alter <class> <name> <attribute> <value>",
		Short: "Change an attribute of a property.",
		Long: "Change an attribute of a property. Attributes are: name, type, linkedtype, linkedclass, " +
			"min, max, mandatory, notnull, readonly, default, regexp, collate, description and custom (as key=value).",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			attr, err := schema.ParsePropertyAttr(args[2])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.AlterProperty(ctx, args[0], args[1], attr, args[3])
			})
		},
	}
}

func newPropertyRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <class> <name> <new-name>",
		Short: "Rename a property and migrate the stored records.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.RenameProperty(ctx, args[0], args[1], args[2])
			})
		},
	}
}

func newPropertyRetypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retype <class> <name> <type>",
		Short: "Change the type of a property and convert the stored values.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := types.ParseTag(args[2])
			if err != nil {
				return err
			}
			unsafe, _ := cmd.Flags().GetBool("unsafe")
			return withCatalog(cmd, func(ctx context.Context, h *Handle) error {
				return h.Catalog.ChangePropertyType(ctx, args[0], args[1], t, unsafe)
			})
		},
	}
	cmd.Flags().Bool("unsafe", false, "allow changes that are not covered by the cast rules")
	return cmd
}
