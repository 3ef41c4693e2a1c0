package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
)

// TransferType is the kind of movement.
type TransferType string

const (
	UnitToUnit    TransferType = "unit_to_unit"
	UnitToStorage TransferType = "unit_to_storage"
	StorageToUnit TransferType = "storage_to_unit"
	Return        TransferType = "return"
	Scrap         TransferType = "scrap"
)

// ItemStatus is the condition of the moved pieces.
type ItemStatus string

const (
	StatusGood    ItemStatus = "good"
	StatusDamaged ItemStatus = "damaged"
	StatusBroken  ItemStatus = "broken"
	StatusLost    ItemStatus = "lost"
)

// ParseTransferType validates a transfer type string.
func ParseTransferType(s string) (TransferType, error) {
	t := TransferType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case UnitToUnit, UnitToStorage, StorageToUnit, Return, Scrap:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown transfer type %q", ErrInvalidTransfer, s)
}

// ParseStatus validates an item status string; blank means good.
func ParseStatus(s string) (ItemStatus, error) {
	st := ItemStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case "":
		return StatusGood, nil
	case StatusGood, StatusDamaged, StatusBroken, StatusLost:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown item status %q", ErrInvalidTransfer, s)
}

var (
	// ErrInvalidTransfer is returned for a request that cannot apply to
	// the item it names.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrInsufficientQuantity is returned when a transfer asks for more
	// pieces than the source holds.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// Request describes one transfer. ToUnitID is required for transfers that
// end in a unit and ignored otherwise. SellValue applies to scrap only.
type Request struct {
	ItemID    int64
	Type      TransferType
	Quantity  int
	ToUnitID  int64
	Status    ItemStatus
	SellValue decimal.Decimal
	By        string
}

// Outcome is the result of an applied transfer. Destination is nil for
// scrap.
type Outcome struct {
	Transfer    store.Transfer
	Source      store.InventoryRow
	Destination *store.InventoryRow
}

// Store is what a transfer reads and writes; run it on a *store.Tx so the
// source, destination and log change together.
type Store interface {
	InventoryItem(ctx context.Context, id int64) (store.InventoryRow, error)
	HousingUnitByID(ctx context.Context, id int64) (store.HousingUnit, error)
	FindInventoryItemByName(ctx context.Context, unitID int64, name string) (store.InventoryRow, error)
	InsertInventoryItem(ctx context.Context, unitID int64, seq int, status string, it *ir.InventoryItem) (int64, error)
	UpdateInventoryValuation(ctx context.Context, id int64, it *ir.InventoryItem) error
	InsertTransfer(ctx context.Context, t *store.Transfer) (int64, error)
}

// destination returns the unit a transfer ends in: 0 for storage, -1 for
// scrap.
func (r Request) destination(src store.InventoryRow) (int64, error) {
	inUnit := src.UnitID != 0
	switch r.Type {
	case UnitToUnit:
		if !inUnit {
			return 0, fmt.Errorf("%w: item %d is in storage, not a unit", ErrInvalidTransfer, src.ID)
		}
		if r.ToUnitID == 0 || r.ToUnitID == src.UnitID {
			return 0, fmt.Errorf("%w: unit_to_unit needs a different destination unit", ErrInvalidTransfer)
		}
		return r.ToUnitID, nil
	case UnitToStorage:
		if !inUnit {
			return 0, fmt.Errorf("%w: item %d is already in storage", ErrInvalidTransfer, src.ID)
		}
		return 0, nil
	case StorageToUnit:
		if inUnit {
			return 0, fmt.Errorf("%w: item %d is not in storage", ErrInvalidTransfer, src.ID)
		}
		if r.ToUnitID == 0 {
			return 0, fmt.Errorf("%w: storage_to_unit needs a destination unit", ErrInvalidTransfer)
		}
		return r.ToUnitID, nil
	case Return:
		if r.ToUnitID == 0 || r.ToUnitID == src.UnitID {
			return 0, fmt.Errorf("%w: return needs a destination unit other than the source", ErrInvalidTransfer)
		}
		return r.ToUnitID, nil
	case Scrap:
		return -1, nil
	}
	return 0, fmt.Errorf("%w: unknown transfer type %q", ErrInvalidTransfer, r.Type)
}

// Apply moves req.Quantity pieces of an item. The source loses the pieces
// and is revalued. A destination unit, or storage, gains them on its
// same-named item when it has one and on a copy of the source otherwise.
// Scrap records a loss of (NBV / quantity) * moved - sell value, negative
// for a gain. Every transfer is appended to the log.
func Apply(ctx context.Context, s Store, req Request, now time.Time) (Outcome, error) {
	if req.Quantity <= 0 {
		return Outcome{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidTransfer, req.Quantity)
	}
	if req.Status == "" {
		req.Status = StatusGood
	}

	src, err := s.InventoryItem(ctx, req.ItemID)
	if err != nil {
		return Outcome{}, fmt.Errorf("transfer item %d: %w", req.ItemID, err)
	}
	dest, err := req.destination(src)
	if err != nil {
		return Outcome{}, err
	}
	if req.Quantity > src.Quantity {
		return Outcome{}, fmt.Errorf("%w: cannot transfer %d of %q, only %d available",
			ErrInsufficientQuantity, req.Quantity, src.Name, src.Quantity)
	}
	if dest > 0 {
		if _, err := s.HousingUnitByID(ctx, dest); err != nil {
			return Outcome{}, fmt.Errorf("transfer to unit %d: %w", dest, err)
		}
	}

	entry := store.Transfer{
		ItemID:        src.ID,
		ItemName:      src.Name,
		Type:          string(req.Type),
		Quantity:      req.Quantity,
		FromUnitID:    src.UnitID,
		Status:        string(req.Status),
		TransferredBy: req.By,
		TransferredAt: now,
	}
	if req.Type == Scrap {
		entry.SellValue = req.SellValue
		entry.Loss = UnitNBV(&src.InventoryItem).Mul(decimal.NewFromInt(int64(req.Quantity))).Sub(req.SellValue).Round(2)
	}

	moved := src.InventoryItem
	src.Quantity -= req.Quantity
	Value(&src.InventoryItem)
	if err := s.UpdateInventoryValuation(ctx, src.ID, &src.InventoryItem); err != nil {
		return Outcome{}, fmt.Errorf("transfer item %d: %w", src.ID, err)
	}

	out := Outcome{Source: src}
	if dest >= 0 {
		d, err := receive(ctx, s, dest, moved, req)
		if err != nil {
			return Outcome{}, err
		}
		entry.ToUnitID = dest
		entry.ToItemID = d.ID
		out.Destination = &d
	}

	if entry.ID, err = s.InsertTransfer(ctx, &entry); err != nil {
		return Outcome{}, fmt.Errorf("transfer item %d: %w", src.ID, err)
	}
	out.Transfer = entry
	return out, nil
}

// receive adds the moved pieces to the destination's same-named item or to
// a new copy of the source item.
func receive(ctx context.Context, s Store, unitID int64, moved ir.InventoryItem, req Request) (store.InventoryRow, error) {
	existing, err := s.FindInventoryItemByName(ctx, unitID, moved.Name)
	switch {
	case err == nil:
		existing.Quantity += req.Quantity
		Value(&existing.InventoryItem)
		if err := s.UpdateInventoryValuation(ctx, existing.ID, &existing.InventoryItem); err != nil {
			return store.InventoryRow{}, fmt.Errorf("merge into item %d: %w", existing.ID, err)
		}
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.InventoryRow{}, fmt.Errorf("find destination item: %w", err)
	}

	moved.Quantity = req.Quantity
	Value(&moved)
	id, err := s.InsertInventoryItem(ctx, unitID, 0, string(req.Status), &moved)
	if err != nil {
		return store.InventoryRow{}, fmt.Errorf("copy item to destination: %w", err)
	}
	return store.InventoryRow{ID: id, UnitID: unitID, Status: string(req.Status), InventoryItem: moved}, nil
}
