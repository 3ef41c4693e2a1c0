package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pamana/internal/engine"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/layout"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Kind   string
	Force  bool
	DryRun bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest report workbooks",
		Long: `Ingest one or more report workbooks of the same kind.

Every file is fingerprinted first; a file already imported is rejected
unless --force is given, which rebuilds its rows in place. Several files
are ingested concurrently with the configured number of workers.

With --dry-run the layout each file would be read with is printed and
nothing is recorded.

Exit codes:
  0  every file ingested (success or partial)
  1  malformed file (unsupported extension, unreadable workbook)
  2  duplicate file without --force
  3  transaction failure
  4  anything else

Example:
  pamana ingest --kind annual_p7 ./reports/01009-003-2024.xlsx
  pamana ingest --kind inventory --force ./forms/*.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "file kind: inventory, annual_p7, building_register, equipment_register (required)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "re-ingest files already imported")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the recognized layout without ingesting")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func runIngest(opts *IngestOptions, paths []string, cmd *cobra.Command) error {
	kind, err := ir.ParseKind(opts.Kind)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid --kind", err)
	}

	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.DryRun {
		return dryRun(sess, paths, kind, cmd)
	}

	jobs := make([]engine.FileJob, len(paths))
	for i, p := range paths {
		jobs[i] = engine.FileJob{Path: p, Kind: kind, Force: opts.Force}
	}
	results, batchErr := sess.engine.IngestFiles(contextOf(cmd), jobs)

	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if err := sess.out.Error(fmt.Errorf("%s: %w", r.Job.Path, r.Err)); err != nil {
				return err
			}
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		if err := sess.out.Success(r.Result, formatIngest(r.Result)); err != nil {
			return err
		}
	}

	if batchErr != nil {
		return WrapExitError(ExitUnknown, "batch interrupted", batchErr)
	}
	if firstErr != nil {
		return WrapPipelineError("ingest failed", firstErr)
	}
	return nil
}

func dryRun(sess *session, paths []string, kind ir.Kind, cmd *cobra.Command) error {
	for _, p := range paths {
		l, err := sess.engine.Inspect(p, kind)
		if err != nil {
			return WrapPipelineError(p, err)
		}
		b, err := layout.Describe(l)
		if err != nil {
			return WrapExitError(ExitUnknown, p, err)
		}
		if _, err := cmd.OutOrStdout().Write(b); err != nil {
			return err
		}
	}
	return nil
}

func formatIngest(r engine.IngestResult) string {
	var b strings.Builder
	verb := "imported"
	if r.Superseded {
		verb = "re-imported"
	}
	fmt.Fprintf(&b, "%s %s (provenance %d): %s, %d records, %d skipped\n",
		verb, r.File, r.ProvenanceID, r.Status, r.Records, len(r.Skipped))
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  warning %s\n", w)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "  skipped %s\n", s)
	}
	if n := len(r.Conflicts); n > 0 {
		fmt.Fprintf(&b, "  %d resolution conflicts recorded\n", n)
	}
	switch {
	case r.SyncError != "":
		fmt.Fprintf(&b, "  sync failed: %s\n", r.SyncError)
	case r.SyncRun != nil:
		fmt.Fprintf(&b, "  sync %s: %s %s\n", r.SyncRun.ID, r.SyncRun.Status, formatCounters(r.SyncRun.Counters))
	}
	return b.String()
}

func formatCounters(c map[string]int64) string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, c[k])
	}
	return "(" + strings.Join(parts, " ") + ")"
}
