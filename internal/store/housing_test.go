package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
)

func seedUnit(t *testing.T, s *Store, number, occupant string) int64 {
	t.Helper()
	ctx := context.Background()
	prop, err := s.EnsureProperty(ctx, "Pamayanan Central", "", fixedTime)
	require.NoError(t, err)
	bldg, err := s.EnsurePropertyBuilding(ctx, prop, "Building A")
	require.NoError(t, err)
	id, err := s.UpsertHousingUnit(ctx, prop, bldg, "Building A", &ir.HousingUnit{
		BuildingName: "Building A",
		Floor:        "2",
		UnitNumber:   number,
		Occupant:     occupant,
		DateReported: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}, fixedTime)
	require.NoError(t, err)
	return id
}

func TestUpsertHousingUnit_RefreshesOccupant(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1 := seedUnit(t, s, "22", "Juan Dela Cruz")
	id2 := seedUnit(t, s, "22", "Maria Santos")
	assert.Equal(t, id1, id2)

	u, err := s.HousingUnitByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", u.Occupant)
	assert.Equal(t, "Pamayanan Central", u.PropertyName)
	assert.Equal(t, "Building A", u.BuildingKey)
	assert.Equal(t, "2024-01-05", u.DateReported.Format("2006-01-02"))

	seedUnit(t, s, "23", "Pedro Reyes")
	units, err := s.HousingUnits(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestInventory_ItemsAndStorage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	unit := seedUnit(t, s, "22", "Juan Dela Cruz")

	bed := &ir.InventoryItem{Name: "Bed", Quantity: 2, AcquisitionCost: dec("5000"), UsefulLife: 5,
		NetBookValue: dec("8000"), Amount: dec("10000"), DateAcquired: date(2020, 3, 1), AcquisitionYear: 2020}
	id, err := s.InsertInventoryItem(ctx, unit, 0, "", bed)
	require.NoError(t, err)

	stored, err := s.InsertInventoryItem(ctx, 0, 0, "damaged", &ir.InventoryItem{Name: "Fan", Quantity: 1})
	require.NoError(t, err)

	got, err := s.InventoryItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, unit, got.UnitID)
	assert.Equal(t, "good", got.Status)
	assert.True(t, dec("8000").Equal(got.NetBookValue))
	require.NotNil(t, got.DateAcquired)

	inStorage, err := s.UnitInventory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, inStorage, 1)
	assert.Equal(t, stored, inStorage[0].ID)
	assert.Zero(t, inStorage[0].UnitID)

	found, err := s.FindInventoryItemByName(ctx, unit, "BED")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	_, err = s.FindInventoryItemByName(ctx, 0, "Bed")
	assert.ErrorIs(t, err, ErrNotFound)

	got.Quantity = 1
	got.NetBookValue = dec("4000")
	got.Amount = dec("5000")
	require.NoError(t, s.UpdateInventoryValuation(ctx, id, &got.InventoryItem))
	got, err = s.InventoryItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)

	require.NoError(t, s.DeleteUnitInventory(ctx, unit))
	items, err := s.UnitInventory(ctx, unit)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTransfers_SurviveItemDeletion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	unit := seedUnit(t, s, "22", "Juan Dela Cruz")

	id, err := s.InsertInventoryItem(ctx, unit, 0, "", &ir.InventoryItem{Name: "Bed", Quantity: 2})
	require.NoError(t, err)

	_, err = s.InsertTransfer(ctx, &Transfer{
		ItemID:        id,
		ItemName:      "Bed",
		Type:          "scrap",
		Quantity:      1,
		FromUnitID:    unit,
		Status:        "broken",
		SellValue:     dec("500"),
		Loss:          dec("3500"),
		TransferredBy: "admin",
		TransferredAt: fixedTime,
	})
	require.NoError(t, err)

	log, err := s.Transfers(ctx, id)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.True(t, dec("3500").Equal(log[0].Loss))
	assert.Equal(t, unit, log[0].FromUnitID)
	assert.Zero(t, log[0].ToUnitID)

	require.NoError(t, s.DeleteUnitInventory(ctx, unit))
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM item_transfers WHERE item_id IS NULL`).Scan(&n))
	assert.Equal(t, 1, n, "the log outlives the item")
}
