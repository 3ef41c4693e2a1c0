package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/pamana/internal/inventory"
	"github.com/roach88/pamana/internal/store"
)

// TransferOptions holds flags for the transfer command.
type TransferOptions struct {
	*RootOptions
	Type      string
	Quantity  int
	To        int64
	Status    string
	SellValue string
	By        string
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transfer <item-id>",
		Short: "Move a housing-unit inventory item",
		Long: `Move some quantity of an inventory item between units, storage and scrap.

Types: unit_to_unit, unit_to_storage, storage_to_unit, return, scrap.
The source item's valuation is recomputed; a destination unit merges the
quantity into its item of the same name or receives a copy. Scrapping
records the loss against the optional sell value.

Example:
  pamana transfer 12 --type unit_to_storage --qty 1 --status damaged --by admin
  pamana transfer 12 --type unit_to_unit --qty 2 --to 7 --by admin
  pamana transfer 12 --type scrap --qty 1 --sell-value 150 --by admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "transfer type (required)")
	cmd.Flags().IntVarP(&opts.Quantity, "qty", "q", 1, "quantity to move")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "destination housing-unit id")
	cmd.Flags().StringVar(&opts.Status, "status", string(inventory.StatusGood), "condition: good, damaged, broken, lost")
	cmd.Flags().StringVar(&opts.SellValue, "sell-value", "0", "amount recovered when scrapping")
	cmd.Flags().StringVar(&opts.By, "by", "", "who makes the transfer (required)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func runTransfer(opts *TransferOptions, args []string, cmd *cobra.Command) error {
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid item id", err)
	}
	typ, err := inventory.ParseTransferType(opts.Type)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid --type", err)
	}
	status, err := inventory.ParseStatus(opts.Status)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid --status", err)
	}
	sell, err := decimal.NewFromString(opts.SellValue)
	if err != nil {
		return WrapExitError(ExitUnknown, "invalid --sell-value", err)
	}

	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.engine.Transfer(contextOf(cmd), inventory.Request{
		ItemID:    itemID,
		Type:      typ,
		Quantity:  opts.Quantity,
		ToUnitID:  opts.To,
		Status:    status,
		SellValue: sell,
		By:        opts.By,
	})
	if err != nil {
		return WrapExitError(ExitUnknown, "transfer failed", err)
	}

	m := newMoney(sess.cfg.Currency)
	var b strings.Builder
	fmt.Fprintf(&b, "transfer #%d: %d x %s (%s)\n", out.Transfer.ID, out.Transfer.Quantity, out.Transfer.ItemName, out.Transfer.Type)
	fmt.Fprintf(&b, "  source %s\n", formatInventoryRow(out.Source, m))
	if out.Destination != nil {
		fmt.Fprintf(&b, "  destination %s\n", formatInventoryRow(*out.Destination, m))
	}
	if !out.Transfer.Loss.IsZero() {
		fmt.Fprintf(&b, "  loss %s\n", m.format(out.Transfer.Loss))
	}
	return sess.out.Success(out, b.String())
}

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory <unit-id|storage>",
		Short: "List a housing unit's inventory",
		Long: `List the inventory items of a housing unit, or of storage.

Example:
  pamana inventory 7
  pamana inventory storage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(rootOpts, args[0], cmd)
		},
	}
}

func runInventory(opts *RootOptions, arg string, cmd *cobra.Command) error {
	var unitID int64
	if arg != "storage" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return NewExitError(ExitUnknown, fmt.Sprintf("invalid unit id %q", arg))
		}
		unitID = id
	}

	sess, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	rows, err := sess.engine.UnitInventory(contextOf(cmd), unitID)
	if err != nil {
		return WrapExitError(ExitUnknown, "failed to list inventory", err)
	}
	m := newMoney(sess.cfg.Currency)
	var b strings.Builder
	if len(rows) == 0 {
		b.WriteString("no items\n")
	}
	for _, r := range rows {
		b.WriteString(formatInventoryRow(r, m))
		b.WriteString("\n")
	}
	return sess.out.Success(rows, b.String())
}

func formatInventoryRow(r store.InventoryRow, m money) string {
	where := "storage"
	if r.UnitID != 0 {
		where = fmt.Sprintf("unit %d", r.UnitID)
	}
	return fmt.Sprintf("#%d %s x%d [%s] %s nbv %s amount %s",
		r.ID, r.Name, r.Quantity, r.Status, where, m.format(r.NetBookValue), m.format(r.Amount))
}
