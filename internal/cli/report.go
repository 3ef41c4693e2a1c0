package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/pamana/internal/engine"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report <dcode> <lcode> <year>",
		Short: "Show a local's report for a year",
		Long: `Show a materialized report with its section totals.

Example:
  pamana report 01009 003 2024
  pamana report 01009 003 2024 --format json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(rootOpts, args, cmd)
		},
	}
}

// NewRolloverCommand creates the rollover command.
func NewRolloverCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover <dcode> <lcode> <year>",
		Short: "Open next year's report from this year's",
		Long: `Open the report for year+1, carrying each building's year-end cost
forward as last year's cost with additions and deductions reset.

Example:
  pamana rollover 01009 003 2024`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollover(rootOpts, args, cmd)
		},
	}
}

func reportKey(args []string) (store.ReportKey, error) {
	year, err := strconv.Atoi(args[2])
	if err != nil || year < 1900 {
		return store.ReportKey{}, NewExitError(ExitUnknown, fmt.Sprintf("invalid year %q", args[2]))
	}
	lcode, _ := ir.NormalizeLCode(args[1])
	return store.ReportKey{DCode: ir.NormalizeDCode(args[0]), LCode: lcode, Year: year}, nil
}

func runReport(opts *RootOptions, args []string, cmd *cobra.Command) error {
	key, err := reportKey(args)
	if err != nil {
		return err
	}
	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	v, err := sess.engine.ShowReport(contextOf(cmd), key)
	if err != nil {
		return WrapExitError(ExitUnknown, "failed to read report", err)
	}
	return sess.out.Success(v, formatReport(v, newMoney(sess.cfg.Currency)))
}

func runRollover(opts *RootOptions, args []string, cmd *cobra.Command) error {
	key, err := reportKey(args)
	if err != nil {
		return err
	}
	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	next, sum, err := sess.engine.Rollover(contextOf(cmd), key)
	if err != nil {
		return WrapPipelineError("rollover failed", err)
	}
	m := newMoney(sess.cfg.Currency)
	text := fmt.Sprintf("opened %d report #%d for %s-%s, carried forward %s\n",
		next.Year, next.ID, key.DCode, key.LCode, m.format(sum.Total))
	return sess.out.Success(struct {
		Report  store.Report `json:"report"`
		Summary ir.Summary   `json:"summary"`
	}{next, sum}, text)
}

// money formats amounts in the configured currency with grouping.
type money struct {
	code string
	p    *message.Printer
}

func newMoney(code string) money {
	return money{code: code, p: message.NewPrinter(language.English)}
}

func (m money) format(d decimal.Decimal) string {
	return m.p.Sprintf("%s %.2f", m.code, d.Round(2).InexactFloat64())
}

func formatReport(v engine.ReportView, m money) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s / %s %s / %d", v.District.DCode, v.District.Name, v.Local.LCode, v.Local.Name, v.Report.Year)
	if v.Report.DateReported != nil {
		fmt.Fprintf(&b, "  reported %s", v.Report.DateReported.Format("2006-01-02"))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "buildings %d  items %d  lands %d  plants %d  vehicles %d\n",
		len(v.Buildings), len(v.Items), len(v.Lands), len(v.Plants), len(v.Vehicles))

	s := v.Summary
	rows := []struct {
		label string
		value decimal.Decimal
	}{
		{"Chapels", s.Chapels},
		{"Pastoral houses", s.PastoralHouses},
		{"Office buildings", s.OfficeBuildings},
		{"Other buildings", s.OtherBuildings},
		{"P1 buildings", s.P1},
		{"P2 existing items", s.P2},
		{"P3 added items", s.P3},
		{"P4 removed items", s.P4},
		{"Land", s.Land},
		{"Plants", s.Plants},
		{"Vehicles", s.Vehicles},
		{"P5 land, plants, vehicles", s.P5},
		{"Total", s.Total},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %-26s %20s\n", r.label, m.format(r.value))
	}
	return b.String()
}
