package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// ConflictsOptions holds flags for the conflicts command.
type ConflictsOptions struct {
	*RootOptions
	Status string
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConflictsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List sync conflicts",
		Long: `List conflicts raised by sync runs.

Example:
  pamana conflicts
  pamana conflicts --status all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflicts(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", string(ir.ConflictPending), "pending, accepted, rejected, merged or all")

	return cmd
}

func runConflicts(opts *ConflictsOptions, cmd *cobra.Command) error {
	status := ir.ConflictStatus(opts.Status)
	if opts.Status == "all" {
		status = ""
	}

	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	list, err := sess.engine.ListConflicts(contextOf(cmd), status)
	if err != nil {
		return WrapExitError(ExitUnknown, "failed to list conflicts", err)
	}
	var b strings.Builder
	if len(list) == 0 {
		b.WriteString("no conflicts\n")
	}
	for _, c := range list {
		b.WriteString(formatConflict(c))
	}
	return sess.out.Success(list, b.String())
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	By     string
	Fields []string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id> <accept|reject|merge>",
		Short: "Resolve a pending sync conflict",
		Long: `Resolve a pending sync conflict.

accept applies the incoming values, reject keeps the existing ones and
merge takes each field from the side named with --field.

Example:
  pamana resolve 3 accept --by admin
  pamana resolve 3 merge --by admin --field middle_name=incoming --field job_title=existing`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.By, "by", "", "who resolves the conflict (required)")
	cmd.Flags().StringArrayVar(&opts.Fields, "field", nil, "merge choice as field=incoming|existing (repeatable)")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func runResolve(opts *ResolveOptions, args []string, cmd *cobra.Command) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid conflict id", err)
	}
	mergeMap, err := parseFields(opts.Fields)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid --field", err)
	}

	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	c, err := sess.engine.ResolveConflict(contextOf(cmd), id, args[1], opts.By, mergeMap)
	if err != nil {
		return WrapPipelineError("resolve failed", err)
	}
	return sess.out.Success(c, formatConflict(c))
}

func parseFields(fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not field=side", f)
		}
		m[k] = v
	}
	return m, nil
}

func formatConflict(c store.Conflict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s %s [%s] run %s\n", c.ID, c.Type, c.Subject, c.Status, c.SyncRunID)
	keys := make([]string, 0, len(c.Incoming))
	for k := range c.Incoming {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-12s existing=%q incoming=%q\n", k, c.Existing[k], c.Incoming[k])
	}
	if c.ResolvedAt != nil {
		fmt.Fprintf(&b, "  resolved by %s at %s\n", c.ResolvedBy, c.ResolvedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
