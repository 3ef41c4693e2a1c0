package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamana/internal/ir"
)

func TestEnsureDistrict_ReturnsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d1, created, err := s.EnsureDistrict(ctx, "01009", "Quezon City", fixedTime)
	require.NoError(t, err)
	assert.True(t, created)

	d2, created, err := s.EnsureDistrict(ctx, "01009", "Another Name", fixedTime)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, d1.ID, d2.ID)
	assert.Equal(t, "Quezon City", d2.Name, "existing name wins")
}

func TestEnsureLocal_ScopedToDistrict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d1, _, err := s.EnsureDistrict(ctx, "01009", "North", fixedTime)
	require.NoError(t, err)
	d2, _, err := s.EnsureDistrict(ctx, "02001", "South", fixedTime)
	require.NoError(t, err)

	l1, created, err := s.EnsureLocal(ctx, d1.ID, "003", "San Jose", fixedTime)
	require.NoError(t, err)
	assert.True(t, created)
	l2, created, err := s.EnsureLocal(ctx, d2.ID, "003", "San Jose", fixedTime)
	require.NoError(t, err)
	assert.True(t, created, "same code and name are allowed in another district")
	assert.NotEqual(t, l1.ID, l2.ID)

	byName, err := s.LocalByName(ctx, d1.ID, "SAN JOSE")
	require.NoError(t, err)
	assert.Equal(t, l1.ID, byName.ID)

	_, _, err = s.EnsureLocal(ctx, d1.ID, "004", "san jose", fixedTime)
	assert.Error(t, err, "a name is unique within its district regardless of case")
}

func TestUpsertReport_UniquePerLocalYear(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r1 := seedReport(t, s, "01009", "003", 2024)

	r2, err := s.UpsertReport(ctx, r1.LocalID, 2024, date(2025, 1, 15), fixedTime)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)
	require.NotNil(t, r2.DateReported)
	assert.Equal(t, "2025-01-15", r2.DateReported.Format("2006-01-02"))

	r3, err := s.UpsertReport(ctx, r1.LocalID, 2024, nil, fixedTime)
	require.NoError(t, err)
	require.NotNil(t, r3.DateReported, "a missing date keeps the stored one")

	byKey, err := s.ReportByKey(ctx, ReportKey{DCode: "01009", LCode: "003", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, r1.ID, byKey.ID)

	_, err = s.ReportByKey(ctx, ReportKey{DCode: "01009", LCode: "003", Year: 2023})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportSource(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := seedReport(t, s, "01009", "003", 2024)

	_, err := s.ReportSource(ctx, r.ID, ir.KindAnnualP7)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetReportSource(ctx, r.ID, ir.KindAnnualP7, "aaa"))
	require.NoError(t, s.SetReportSource(ctx, r.ID, ir.KindAnnualP7, "bbb"))
	hash, err := s.ReportSource(ctx, r.ID, ir.KindAnnualP7)
	require.NoError(t, err)
	assert.Equal(t, "bbb", hash)
}

func TestBuildings_RoundTripInPageOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := seedReport(t, s, "01009", "003", 2024)

	office := &ir.Building{Class: ir.ClassOffice, Name: "Office", LastYearCost: dec("500")}
	chapel := &ir.Building{
		Class:             ir.ClassChapel,
		Name:              "Main Chapel",
		Classification:    "A-1",
		DateBuilt:         date(1998, 6, 1),
		Donated:           true,
		LastYearCost:      dec("100000"),
		AddConstruction:   dec("10000"),
		Deduction:         dec("5000"),
		TotalCostThisYear: dec("105000"),
	}
	require.NoError(t, s.InsertBuilding(ctx, r.ID, 0, office))
	require.NoError(t, s.InsertBuilding(ctx, r.ID, 0, chapel))

	got, err := s.Buildings(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ir.ClassChapel, got[0].Class)
	assert.True(t, got[0].Donated)
	assert.True(t, dec("105000").Equal(got[0].TotalCostThisYear))
	assert.True(t, dec("5000").Equal(got[0].Deduction))
	require.NotNil(t, got[0].DateBuilt)
	assert.Equal(t, 1998, got[0].DateBuilt.Year())
	assert.Equal(t, ir.ClassOffice, got[1].Class)

	require.NoError(t, s.DeleteBuildings(ctx, r.ID, ir.ClassChapel))
	got, err = s.Buildings(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Office", got[0].Name)
}

func TestItems_DeleteByKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := seedReport(t, s, "01009", "003", 2024)

	items := []ir.Item{
		{Kind: ir.ItemExisting, Name: "Chair", Quantity: 10, UnitPrice: dec("500"), Amount: dec("5000"), Kaukulan: "KAPILYA"},
		{Kind: ir.ItemAdded, Name: "Fan", Quantity: 2, UnitPrice: dec("1500.50"), Amount: dec("3001")},
		{Kind: ir.ItemRemoved, Name: "Table", Quantity: 1, UnitPrice: dec("800"), Amount: dec("800"), Reason: "sira"},
	}
	for i := range items {
		require.NoError(t, s.InsertItem(ctx, r.ID, i, &items[i]))
	}

	got, err := s.Items(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "KAPILYA", got[0].Kaukulan)
	assert.True(t, dec("1500.5").Equal(got[1].UnitPrice))
	assert.Equal(t, "sira", got[2].Reason)

	require.NoError(t, s.DeleteItems(ctx, r.ID, ir.ItemExisting, ir.ItemAdded))
	got, err = s.Items(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ir.ItemRemoved, got[0].Kind)
}

func TestAssets_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := seedReport(t, s, "01009", "003", 2024)

	require.NoError(t, s.InsertLand(ctx, r.ID, 0, &ir.Land{Address: "Lot 5", AreaSqm: dec("250.5"), Value: dec("1200000")}))
	plant := &ir.Plant{Name: "Mango", FruitBearing: 7, NonFruitBearing: 3, UnitPrice: dec("100")}
	plant.Derive()
	require.NoError(t, s.InsertPlant(ctx, r.ID, 0, plant))
	require.NoError(t, s.InsertVehicle(ctx, r.ID, 0, &ir.Vehicle{MakeType: "Toyota Hiace", PlateNumber: "ABC 123", Cost: dec("1500000")}))

	lands, err := s.Lands(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, lands, 1)
	assert.True(t, dec("250.5").Equal(lands[0].AreaSqm))

	plants, err := s.Plants(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, plants, 1)
	assert.Equal(t, 10, plants[0].TotalQuantity)
	assert.True(t, dec("1000").Equal(plants[0].TotalValue))

	vehicles, err := s.Vehicles(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "ABC 123", vehicles[0].PlateNumber)

	require.NoError(t, s.DeleteAssets(ctx, r.ID))
	lands, err = s.Lands(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, lands)
	assert.NotNil(t, lands, "reads return empty slices, not nil")
}

func TestSummary_Upsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := seedReport(t, s, "01009", "003", 2024)

	_, err := s.Summary(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	sum := ir.Summary{Chapels: dec("105000"), P1: dec("105000"), P4: dec("800")}
	sum.Finish()
	require.NoError(t, s.UpsertSummary(ctx, r.ID, &sum, fixedTime))

	sum.P2 = dec("5000")
	sum.Finish()
	require.NoError(t, s.UpsertSummary(ctx, r.ID, &sum, fixedTime))

	got, err := s.Summary(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, dec("105000").Equal(got.Chapels))
	assert.True(t, dec("109200").Equal(got.Total))
}
