package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pamana/internal/ir"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pipeline and schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			v := map[string]string{
				"pipeline": ir.PipelineVersion,
				"schema":   ir.SchemaVersion,
			}
			return out.Success(v, fmt.Sprintf("pamana %s (schema %s)\n", ir.PipelineVersion, ir.SchemaVersion))
		},
	}
}
