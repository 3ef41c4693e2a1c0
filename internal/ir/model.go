package ir

import (
	"time"

	"github.com/shopspring/decimal"
)

// Header carries the report-level identification found on the workbook.
type Header struct {
	DCode        string     `json:"dcode"`
	LCode        string     `json:"lcode"`
	LocalName    string     `json:"local_name,omitempty"`
	Year         int        `json:"year"`
	DateReported *time.Time `json:"date_reported,omitempty"`
}

// Building is one building-class row of a report: a chapel, pastoral
// house, office building or other building.
type Building struct {
	Class            BuildingClass   `json:"class"`
	Code             string          `json:"code,omitempty"`
	Name             string          `json:"name"`
	Classification   string          `json:"classification"`
	DateBuilt        *time.Time      `json:"date_built,omitempty"`
	SeatingCapacity  int             `json:"seating_capacity"`
	FundedBy         string          `json:"funded_by"`
	Donated          bool            `json:"donated"`
	DateDonated      *time.Time      `json:"date_donated,omitempty"`
	DateOwned        *time.Time      `json:"date_owned,omitempty"`
	OriginalCost     decimal.Decimal `json:"original_cost"`
	LastYearCost     decimal.Decimal `json:"last_year_cost"`
	AddConstruction  decimal.Decimal `json:"add_construction"`
	AddRenovation    decimal.Decimal `json:"add_renovation"`
	AddGeneralRepair decimal.Decimal `json:"add_general_repair"`
	AddOther         decimal.Decimal `json:"add_other"`
	Deduction        decimal.Decimal `json:"deduction_amount"`
	DeductionReason  string          `json:"deduction_reason"`
	// StatedTotal is the total printed on the source row, if any. It is
	// compared against the derived total and never stored as the total.
	StatedTotal       *decimal.Decimal `json:"stated_total,omitempty"`
	TotalCostThisYear decimal.Decimal  `json:"total_cost_this_year"`
	Remarks           string           `json:"remarks"`
}

// TotalAdded sums the four addition categories.
func (b *Building) TotalAdded() decimal.Decimal {
	return b.AddConstruction.Add(b.AddRenovation).Add(b.AddGeneralRepair).Add(b.AddOther)
}

// Derive recomputes TotalCostThisYear as last-year cost plus additions
// minus deductions. A negative result is clamped to zero and reported.
func (b *Building) Derive() (clamped bool) {
	total := b.LastYearCost.Add(b.TotalAdded()).Sub(b.Deduction)
	if total.IsNegative() {
		b.TotalCostThisYear = decimal.Zero
		return true
	}
	b.TotalCostThisYear = total
	return false
}

// Item is an existing, added or removed inventory item of a report.
type Item struct {
	Kind            ItemKind        `json:"kind"`
	Kaukulan        string          `json:"kaukulan,omitempty"`
	IIN             string          `json:"iin"`
	DateReceived    *time.Time      `json:"date_received,omitempty"`
	// AcquisitionYear is set by registers that record a year, not a date.
	AcquisitionYear int             `json:"acquisition_year,omitempty"`
	Quantity        int             `json:"quantity"`
	Name            string          `json:"name"`
	Brand           string          `json:"brand"`
	Model           string          `json:"model"`
	Make            string          `json:"make"`
	Color           string          `json:"color"`
	Size            string          `json:"size"`
	Serial          string          `json:"serial"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Amount          decimal.Decimal `json:"amount"`
	ApprovalNumber  string          `json:"approval_number,omitempty"`
	SourcePlace     string          `json:"source_place,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Remarks         string          `json:"remarks"`
}

// Land is a page-5 land asset.
type Land struct {
	Address        string          `json:"address"`
	AreaSqm        decimal.Decimal `json:"area_sqm"`
	DateAcquired   *time.Time      `json:"date_acquired,omitempty"`
	Value          decimal.Decimal `json:"value"`
	BuildingOnLand string          `json:"building_on_land"`
	Remarks        string          `json:"remarks"`
}

// Plant is a page-5 plant asset. TotalQuantity is always the sum of the
// fruit-bearing and non-fruit-bearing counts.
type Plant struct {
	Name            string          `json:"name"`
	PlantType       string          `json:"plant_type"`
	FruitBearing    int             `json:"fruit_bearing"`
	NonFruitBearing int             `json:"non_fruit_bearing"`
	TotalQuantity   int             `json:"total_quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalValue      decimal.Decimal `json:"total_value"`
	Remarks         string          `json:"remarks"`
}

// Derive recomputes TotalQuantity and, when a unit price is known,
// TotalValue.
func (p *Plant) Derive() {
	p.TotalQuantity = p.FruitBearing + p.NonFruitBearing
	if !p.UnitPrice.IsZero() {
		p.TotalValue = p.UnitPrice.Mul(decimal.NewFromInt(int64(p.TotalQuantity)))
	}
}

// Vehicle is a page-5 vehicle asset.
type Vehicle struct {
	MakeType      string          `json:"make_type"`
	PlateNumber   string          `json:"plate_number"`
	YearModel     string          `json:"year_model"`
	DatePurchased *time.Time      `json:"date_purchased,omitempty"`
	AssignedUser  string          `json:"assigned_user"`
	Designation   string          `json:"designation"`
	Cost          decimal.Decimal `json:"cost"`
	Remarks       string          `json:"remarks"`
}

// HousingUnit is the header block of a per-unit inventory form.
type HousingUnit struct {
	HousingUnitName string    `json:"housing_unit_name"`
	BuildingName    string    `json:"building_name"`
	Floor           string    `json:"floor"`
	UnitNumber      string    `json:"unit_number"`
	Address         string    `json:"address"`
	Occupant        string    `json:"occupant"`
	Department      string    `json:"department"`
	Section         string    `json:"section"`
	JobTitle        string    `json:"job_title"`
	DateReported    time.Time `json:"date_reported"`
}

// Site applies the pamayanan rule: without a floor the unit stands alone
// and its site is the building (or the address) with no building row;
// with a floor the site is the address (or the building) and the building
// is a child of it.
func (u *HousingUnit) Site() (site, building string) {
	if u.Floor == "" {
		if u.BuildingName != "" {
			return u.BuildingName, ""
		}
		return u.Address, ""
	}
	if u.Address != "" {
		return u.Address, u.BuildingName
	}
	return u.BuildingName, u.BuildingName
}

// Label is the unit's identifying label: the housing-unit name or, when
// absent, the unit number.
func (u *HousingUnit) Label() string {
	if u.HousingUnitName != "" {
		return u.HousingUnitName
	}
	return u.UnitNumber
}

// InventoryItem is one item of a housing unit's inventory.
type InventoryItem struct {
	ItemCode        string          `json:"item_code"`
	DateAcquired    *time.Time      `json:"date_acquired,omitempty"`
	AcquisitionYear int             `json:"acquisition_year"`
	Quantity        int             `json:"quantity"`
	Name            string          `json:"name"`
	Brand           string          `json:"brand"`
	Model           string          `json:"model"`
	Make            string          `json:"make"`
	Color           string          `json:"color"`
	Size            string          `json:"size"`
	Serial          string          `json:"serial"`
	AcquisitionCost decimal.Decimal `json:"acquisition_cost"`
	UsefulLife      int             `json:"useful_life"`
	NetBookValue    decimal.Decimal `json:"net_book_value"`
	Amount          decimal.Decimal `json:"amount"`
	Remarks         string          `json:"remarks"`
}

// Summary holds the derived per-section totals of one report.
type Summary struct {
	Chapels         decimal.Decimal `json:"chapels"`
	PastoralHouses  decimal.Decimal `json:"pastoral_houses"`
	OfficeBuildings decimal.Decimal `json:"office_buildings"`
	OtherBuildings  decimal.Decimal `json:"other_buildings"`
	P1              decimal.Decimal `json:"p1"`
	P2              decimal.Decimal `json:"p2"`
	P3              decimal.Decimal `json:"p3"`
	P4              decimal.Decimal `json:"p4"`
	Land            decimal.Decimal `json:"land"`
	Plants          decimal.Decimal `json:"plants"`
	Vehicles        decimal.Decimal `json:"vehicles"`
	P5              decimal.Decimal `json:"p5"`
	Total           decimal.Decimal `json:"total"`
}

// AddBuilding accumulates a building's derived total into its class and P1.
func (s *Summary) AddBuilding(b *Building) {
	switch b.Class {
	case ClassChapel:
		s.Chapels = s.Chapels.Add(b.TotalCostThisYear)
	case ClassPastoralHouse:
		s.PastoralHouses = s.PastoralHouses.Add(b.TotalCostThisYear)
	case ClassOffice:
		s.OfficeBuildings = s.OfficeBuildings.Add(b.TotalCostThisYear)
	default:
		s.OtherBuildings = s.OtherBuildings.Add(b.TotalCostThisYear)
	}
	s.P1 = s.P1.Add(b.TotalCostThisYear)
}

// AddItem accumulates an item amount into P2, P3 or P4.
func (s *Summary) AddItem(it *Item) {
	switch it.Kind {
	case ItemAdded:
		s.P3 = s.P3.Add(it.Amount)
	case ItemRemoved:
		s.P4 = s.P4.Add(it.Amount)
	default:
		s.P2 = s.P2.Add(it.Amount)
	}
}

// AddLand, AddPlant and AddVehicle accumulate page-5 values.
func (s *Summary) AddLand(l *Land) {
	s.Land = s.Land.Add(l.Value)
	s.P5 = s.P5.Add(l.Value)
}

func (s *Summary) AddPlant(p *Plant) {
	s.Plants = s.Plants.Add(p.TotalValue)
	s.P5 = s.P5.Add(p.TotalValue)
}

func (s *Summary) AddVehicle(v *Vehicle) {
	s.Vehicles = s.Vehicles.Add(v.Cost)
	s.P5 = s.P5.Add(v.Cost)
}

// Finish computes the report aggregate P1 + P2 + P3 - P4 + P5.
func (s *Summary) Finish() {
	s.Total = s.P1.Add(s.P2).Add(s.P3).Sub(s.P4).Add(s.P5)
}
