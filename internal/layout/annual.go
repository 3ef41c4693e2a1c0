package layout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/workbook"
)

const (
	// classifyRows bounds the content scan used to classify a sheet.
	classifyRows = 60
	// headerSearchRows bounds the search for a column-header row.
	headerSearchRows = 12
	maxLabelLen      = 120
	labelSpan        = 5
)

var (
	pageName     = regexp.MustCompile(`(?i)(?:^|[^A-Z])(?:PAGE|PAHINA|P)\s*-?\s*([1-5])(?:\D|$)`)
	labelPattern = regexp.MustCompile(`^[\p{L}][\p{L} ]*$`)
)

// sectionKeys maps each annual page to its template sections in order.
var sectionKeys = map[ir.SheetClass][]string{
	ir.SheetP7Page1: {"chapel", "pastoral_house", "office_building", "other_building"},
	ir.SheetP7Page2: {"item"},
	ir.SheetP7Page3: {"added_item"},
	ir.SheetP7Page4: {"removed_item"},
	ir.SheetP7Page5: {"land", "plant", "vehicle"},
}

var sectionKinds = map[string]ir.Section{
	"chapel":          ir.SectionChapel,
	"pastoral_house":  ir.SectionPastoralHouse,
	"office_building": ir.SectionOfficeBuilding,
	"other_building":  ir.SectionOtherBuilding,
	"item":            ir.SectionItem,
	"added_item":      ir.SectionAddedItem,
	"removed_item":    ir.SectionRemovedItem,
	"land":            ir.SectionLand,
	"plant":           ir.SectionPlant,
	"vehicle":         ir.SectionVehicle,
}

// classifyTokens are the heading tokens that identify a page by content.
// OTHER and IBA are too common to classify a page on their own.
var classifyTokens = []struct {
	class  ir.SheetClass
	tokens []string
}{
	{ir.SheetP7Page5, []string{"LUPA", "LAND", "PANANIM", "PLANT", "SASAKYAN", "VEHICLE"}},
	{ir.SheetP7Page4, []string{"REMOVED", "NABAWAS"}},
	{ir.SheetP7Page3, []string{"ADDED", "NADAGDAG", "NADADAG"}},
	{ir.SheetP7Page1, []string{"CHAPEL", "KAPILYA", "PASTORAL", "OFFICE", "OPISINA"}},
}

func (r *Recognizer) annualPlan(sheet *workbook.Sheet, ref sheetRef) Plan {
	class := classifyAnnual(sheet)
	if class == ir.SheetUnknown {
		return &UnknownPlan{sheetRef: ref}
	}
	return &AnnualPlan{
		sheetRef:   ref,
		SheetClass: class,
		Sections:   r.annualSections(sheet, class),
	}
}

// classifyAnnual decides the page of a sheet from its name, then from the
// first heading or IIN column header in its content.
func classifyAnnual(sheet *workbook.Sheet) ir.SheetClass {
	if m := pageName.FindStringSubmatch(sheet.Name); m != nil {
		return ir.SheetClass("p7_page" + m[1])
	}

	matchers := make([]tokenMatcher, len(classifyTokens))
	for i, ct := range classifyTokens {
		matchers[i] = newTokenMatcher(ct.tokens)
	}
	iin := newTokenMatcher([]string{"IIN"})

	for row := 0; row < sheet.RowCount() && row < classifyRows; row++ {
		cells := sheet.Row(row)
		_, first := firstNonEmpty(cells)
		if first.Kind == workbook.String && !hasNumber(cells) {
			for i, ct := range classifyTokens {
				if matchers[i].match(first.Str) {
					return ct.class
				}
			}
		}
		for _, cell := range cells {
			if cell.Kind == workbook.String && iin.match(cell.Str) && strings.HasPrefix(strings.ToUpper(cell.Str), "IIN") {
				return ir.SheetP7Page2
			}
		}
	}
	return ir.SheetUnknown
}

// annualSections splits a page into sections. Multi-section pages open a
// section at each heading row; single-section pages span the sheet below
// the report header block.
func (r *Recognizer) annualSections(sheet *workbook.Sheet, class ir.SheetClass) []Section {
	keys := sectionKeys[class]
	tmpl := r.templates.Annual
	stop := newTokenMatcher(tmpl.StopTokens)

	last := sheet.RowCount() - 1
	for row := 0; row <= last; row++ {
		if rowMatches(sheet.Row(row), stop) {
			last = row - 1
			break
		}
	}

	type span struct {
		key        string
		start, end int
	}
	var spans []span

	if len(keys) == 1 {
		start := 0
		for row := 0; row <= last && row < headerZone; row++ {
			if isHeaderFieldRow(sheet.Row(row)) {
				start = row + 1
			}
		}
		if start <= last {
			spans = append(spans, span{key: keys[0], start: start, end: last})
		}
	} else {
		matchers := make([]tokenMatcher, len(keys))
		for i, k := range keys {
			matchers[i] = newTokenMatcher(tmpl.Sections[k].Tokens)
		}
		for row := 0; row <= last; row++ {
			cells := sheet.Row(row)
			_, first := firstNonEmpty(cells)
			if first.Kind != workbook.String || hasNumber(cells) {
				continue
			}
			for i, k := range keys {
				if matchers[i].match(first.Str) {
					if n := len(spans); n > 0 {
						spans[n-1].end = row - 1
					}
					spans = append(spans, span{key: k, start: row + 1, end: last})
					break
				}
			}
		}
	}

	sections := make([]Section, 0, len(spans))
	for _, sp := range spans {
		sections = append(sections, r.buildSection(sheet, sp.key, sp.start, sp.end))
	}
	return sections
}

// buildSection locates the column-header row, relocates roles by their
// labels and marks totals and kaukulan label rows.
func (r *Recognizer) buildSection(sheet *workbook.Sheet, key string, start, end int) Section {
	st := r.templates.Annual.Sections[key]
	kind := sectionKinds[key]

	sec := Section{
		Kind:      kind,
		HeaderRow: -1,
		StartRow:  start,
		EndRow:    end,
		Columns:   make(map[Role]int, len(st.Roles)),
		Window:    append([]Role(nil), st.Window...),
		Required:  append([]Role(nil), st.Required...),
		Labels:    map[int]string{},
		Ignore:    map[int]bool{},
	}
	for role, rt := range st.Roles {
		sec.Columns[role] = rt.Col
	}

	for row := start; row <= end && row < start+headerSearchRows; row++ {
		cells := sheet.Row(row)
		if isHeaderFieldRow(cells) {
			continue
		}
		if hasNumber(cells) {
			break
		}
		if found := matchHeader(cells, st); len(found) >= 2 {
			relocate(sec.Columns, found)
			sec.HeaderRow = row
			sec.StartRow = row + 1
			break
		}
	}

	totals := newTokenMatcher(r.templates.Annual.TotalsTokens)
	_, isItem := kind.ItemKind()
	for row := sec.StartRow; row <= end; row++ {
		cells := sheet.Row(row)
		if rowMatches(cells, totals) {
			sec.Ignore[row] = true
			continue
		}
		if isItem {
			if label, ok := kaukulanLabel(cells); ok {
				sec.Labels[row] = label
			}
		}
	}
	return sec
}

// matchHeader assigns roles to header cells. Each cell takes the role with
// the longest label it contains; each role is assigned once.
func matchHeader(cells []workbook.Cell, st SectionTemplate) map[Role]int {
	roles := make([]Role, 0, len(st.Roles))
	for role := range st.Roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	found := map[Role]int{}
	for c, cell := range cells {
		if cell.Kind != workbook.String {
			continue
		}
		text := strings.ToUpper(cell.Str)
		best, bestLen := Role(""), 0
		for _, role := range roles {
			if _, taken := found[role]; taken {
				continue
			}
			for _, label := range st.Roles[role].Labels {
				if len(label) > bestLen && strings.Contains(text, label) {
					best, bestLen = role, len(label)
				}
			}
		}
		if best != "" {
			found[best] = c
		}
	}
	return found
}

// relocate moves matched roles to their header columns and drops unmatched
// roles whose default column a matched role now occupies.
func relocate(columns map[Role]int, found map[Role]int) {
	claimed := map[int]bool{}
	for role, col := range found {
		columns[role] = col
		claimed[col] = true
	}
	for role, col := range columns {
		if _, matched := found[role]; !matched && claimed[col] {
			delete(columns, role)
		}
	}
}

// kaukulanLabel recognizes a location label row: a short alphabetic first
// cell followed by five empty cells and no numbers.
func kaukulanLabel(cells []workbook.Cell) (string, bool) {
	c, first := firstNonEmpty(cells)
	if c < 0 || first.Kind != workbook.String || len(first.Str) > maxLabelLen || !labelPattern.MatchString(first.Str) {
		return "", false
	}
	if hasNumber(cells) {
		return "", false
	}
	for i := c + 1; i <= c+labelSpan && i < len(cells); i++ {
		if !cells[i].IsEmpty() {
			return "", false
		}
	}
	return first.Str, true
}

func rowMatches(cells []workbook.Cell, m tokenMatcher) bool {
	for _, cell := range cells {
		if cell.Kind == workbook.String && m.match(cell.Str) {
			return true
		}
	}
	return false
}
