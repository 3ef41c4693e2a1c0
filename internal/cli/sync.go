package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pamana/internal/store"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	History int
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Project housing units into the admin view",
		Long: `Run a manual sync of canonical housing units into the admin view.

Sites, buildings, units, workers and assignments are created as needed;
worker identity clashes are recorded as conflicts for review.

With --history N the last N sync runs are listed instead.

Example:
  pamana sync
  pamana sync --history 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.History, "history", 0, "list the last N sync runs instead of syncing")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()
	ctx := contextOf(cmd)

	if opts.History > 0 {
		runs, err := sess.engine.SyncRuns(ctx, opts.History)
		if err != nil {
			return WrapExitError(ExitUnknown, "failed to list sync runs", err)
		}
		var b strings.Builder
		if len(runs) == 0 {
			b.WriteString("no sync runs\n")
		}
		for _, r := range runs {
			b.WriteString(formatSyncRun(r))
		}
		return sess.out.Success(runs, b.String())
	}

	run, err := sess.engine.Sync(ctx)
	if err != nil {
		return WrapPipelineError("sync failed", err)
	}
	return sess.out.Success(run, formatSyncRun(run))
}

func formatSyncRun(r store.SyncRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-7s %-7s %s  %s %s\n",
		r.StartedAt.Format("2006-01-02 15:04:05"), r.Trigger, r.Status, r.ID,
		r.Duration, formatCounters(r.Counters))
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "  %s\n", n)
	}
	return b.String()
}
