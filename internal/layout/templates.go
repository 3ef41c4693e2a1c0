package layout

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed templates.cue
var defaultTemplates string

// Coord is a zero-based (row, col) cell coordinate.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Templates are the form layouts the recognizer relies on.
type Templates struct {
	UnitInventory     UnitInventoryTemplate     `json:"unit_inventory"`
	BuildingRegister  BuildingRegisterTemplate  `json:"building_register"`
	EquipmentRegister EquipmentRegisterTemplate `json:"equipment_register"`
	Annual            AnnualTemplate            `json:"annual"`
}

// UnitInventoryTemplate fixes the per-unit inventory form (P-7-H).
type UnitInventoryTemplate struct {
	Sheet        int              `json:"sheet"`
	Header       map[string]Coord `json:"header"`
	DatePrefix   string           `json:"date_prefix"`
	FirstItemRow int              `json:"first_item_row"`
	Columns      map[Role]int     `json:"columns"`
}

// BuildingRegisterTemplate fixes the building register (gusali).
type BuildingRegisterTemplate struct {
	Year         Coord             `json:"year"`
	FirstRow     int               `json:"first_row"`
	Codes        map[string]string `json:"codes"`
	DonatedToken string            `json:"donated_token"`
	Columns      map[Role]int      `json:"columns"`
}

// EquipmentRegisterTemplate fixes the equipment register (kagamitan).
type EquipmentRegisterTemplate struct {
	HeaderRow  int          `json:"header_row"`
	FirstRow   int          `json:"first_row"`
	AddedSheet int          `json:"added_sheet"`
	SkipToken  string       `json:"skip_token"`
	Columns    map[Role]int `json:"columns"`
}

// AnnualTemplate describes the token-driven annual report pages.
type AnnualTemplate struct {
	TotalsTokens []string                   `json:"totals_tokens"`
	StopTokens   []string                   `json:"stop_tokens"`
	Sections     map[string]SectionTemplate `json:"sections"`
}

// SectionTemplate is the default column map of one annual section.
type SectionTemplate struct {
	Tokens   []string              `json:"tokens"`
	Roles    map[Role]RoleTemplate `json:"roles"`
	Window   []Role                `json:"window"`
	Required []Role                `json:"required"`
}

// RoleTemplate is a role's default column and the header labels that
// relocate it.
type RoleTemplate struct {
	Col    int      `json:"col"`
	Labels []string `json:"labels"`
}

// LoadTemplates compiles the embedded templates and, when overridePath is
// set, unifies them with the user's CUE file. CUE constraints reject
// negative coordinates and conflicting values.
func LoadTemplates(overridePath string) (*Templates, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(defaultTemplates, cue.Filename("templates.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile templates: %w", err)
	}

	if overridePath != "" {
		src, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read templates: %w", err)
		}
		override := ctx.CompileBytes(src, cue.Filename(overridePath))
		if err := override.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", overridePath, err)
		}
		v = v.Unify(override)
	}

	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("validate templates: %w", err)
	}

	var t Templates
	if err := v.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return &t, nil
}

var (
	defaultOnce sync.Once
	defaultT    *Templates
	defaultErr  error
)

// DefaultTemplates returns the embedded templates. It panics if they do not
// compile, which only a broken build can cause.
func DefaultTemplates() *Templates {
	defaultOnce.Do(func() {
		defaultT, defaultErr = LoadTemplates("")
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultT
}
