package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ImportsOptions holds flags for the imports command.
type ImportsOptions struct {
	*RootOptions
	Limit int
}

// NewImportsCommand creates the imports command.
func NewImportsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List provenance entries",
		Long: `List imported files, newest first, with their status and counts.

Example:
  pamana imports --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImports(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum entries to list (0 for all)")

	return cmd
}

func runImports(opts *ImportsOptions, cmd *cobra.Command) error {
	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	list, err := sess.engine.ListImports(contextOf(cmd), opts.Limit)
	if err != nil {
		return WrapExitError(ExitUnknown, "failed to list imports", err)
	}

	var b strings.Builder
	if len(list) == 0 {
		b.WriteString("no imports\n")
	}
	for _, f := range list {
		fmt.Fprintf(&b, "%4d  %s  %-18s %-10s %4d records %3d skipped  %s  %s\n",
			f.ID, f.ImportedAt.Format("2006-01-02 15:04:05"), f.Kind, f.Status,
			f.Records, len(f.Skipped), f.FileHash[:12], f.Filename)
		if f.ErrorMessage != "" {
			fmt.Fprintf(&b, "      %s\n", f.ErrorMessage)
		}
	}
	return sess.out.Success(list, b.String())
}
