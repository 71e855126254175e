package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cayleygraph/catalog/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schemactl %s (%s)\n", version.Version, version.GitHash)
			if version.BuildDate != "" {
				fmt.Fprintf(out, "built %s\n", version.BuildDate)
			}
			return nil
		},
	}
}
