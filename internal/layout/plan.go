package layout

import (
	"github.com/roach88/pamana/internal/ir"
)

// Role is the semantic meaning of a column.
type Role string

// CellRef points at the cell a header value came from. Value holds the
// normalized value.
type CellRef struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// HeaderPlan records where the report header was found and the values
// resolved from it, fallbacks included.
type HeaderPlan struct {
	DCode        *CellRef  `json:"dcode_cell,omitempty"`
	LCode        *CellRef  `json:"lcode_cell,omitempty"`
	LocalName    *CellRef  `json:"local_name_cell,omitempty"`
	Year         *CellRef  `json:"year_cell,omitempty"`
	DateReported *CellRef  `json:"date_reported_cell,omitempty"`
	Values       ir.Header `json:"values"`
}

// Section is a contiguous block of data rows of one kind.
type Section struct {
	Kind ir.Section `json:"kind"`
	// HeaderRow is the column-header row that relocated roles, or -1 when
	// the template's default columns apply.
	HeaderRow int          `json:"header_row"`
	StartRow  int          `json:"start_row"`
	EndRow    int          `json:"end_row"`
	Columns   map[Role]int `json:"column_map"`
	Window    []Role       `json:"window"`
	Required  []Role       `json:"required"`
	// Labels maps a kaukulan label row to its label.
	Labels map[int]string `json:"labels,omitempty"`
	// Ignore holds totals rows inside the section.
	Ignore map[int]bool `json:"ignore,omitempty"`
}

// Plan is the layout of one sheet. Its concrete type is one of
// *AnnualPlan, *UnitInventoryPlan, *BuildingRegisterPlan,
// *EquipmentRegisterPlan or *UnknownPlan.
type Plan interface {
	SheetName() string
	Class() ir.SheetClass
}

type sheetRef struct {
	Sheet string `json:"sheet"`
	Index int    `json:"index"`
}

func (s sheetRef) SheetName() string { return s.Sheet }

// AnnualPlan covers one page of the annual P7 report.
type AnnualPlan struct {
	sheetRef
	SheetClass ir.SheetClass `json:"sheet_class"`
	Sections   []Section     `json:"sections"`
}

func (p *AnnualPlan) Class() ir.SheetClass { return p.SheetClass }

// UnitInventoryPlan covers the fixed per-unit inventory form. Unit is the
// housing-unit header read from the form's coordinates.
type UnitInventoryPlan struct {
	sheetRef
	Fields       map[string]CellRef `json:"fields"`
	Unit         ir.HousingUnit     `json:"unit"`
	FirstItemRow int                `json:"first_item_row"`
	LastItemRow  int                `json:"last_item_row"`
	Columns      map[Role]int       `json:"column_map"`
	// DefaultUsefulLife applies to items whose useful-life cell is blank.
	DefaultUsefulLife int          `json:"default_useful_life"`
	Ignore            map[int]bool `json:"ignore,omitempty"`
}

func (p *UnitInventoryPlan) Class() ir.SheetClass { return ir.SheetInventoryP7H }

// BuildingRegisterPlan covers the building register.
type BuildingRegisterPlan struct {
	sheetRef
	FirstRow     int                         `json:"first_row"`
	Columns      map[Role]int                `json:"column_map"`
	Codes        map[string]ir.BuildingClass `json:"codes"`
	DonatedToken string                      `json:"donated_token"`
}

func (p *BuildingRegisterPlan) Class() ir.SheetClass { return ir.SheetGusaliRegister }

// EquipmentRegisterPlan covers one sheet of the equipment register.
type EquipmentRegisterPlan struct {
	sheetRef
	ItemKind  ir.ItemKind  `json:"item_kind"`
	FirstRow  int          `json:"first_row"`
	LastRow   int          `json:"last_row"`
	Columns   map[Role]int `json:"column_map"`
	SkipToken string       `json:"skip_token"`
	Ignore    map[int]bool `json:"ignore,omitempty"`
}

func (p *EquipmentRegisterPlan) Class() ir.SheetClass { return ir.SheetKagamitanRegister }

// UnknownPlan marks a sheet the recognizer could not classify. The
// extractor yields nothing for it.
type UnknownPlan struct {
	sheetRef
}

func (p *UnknownPlan) Class() ir.SheetClass { return ir.SheetUnknown }

// Layout is the recognizer's output for one workbook.
type Layout struct {
	Kind     ir.Kind      `json:"kind"`
	Header   HeaderPlan   `json:"header"`
	Plans    []Plan       `json:"plans"`
	Warnings []ir.Warning `json:"warnings"`
}
