package layout

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/workbook"
)

// Recognizer classifies sheets and produces their layout plans. It is the
// only component that decides where data lives in a workbook.
type Recognizer struct {
	templates  *Templates
	aliases    map[string]string
	usefulLife int
	now        func() time.Time
	log        logrus.FieldLogger
}

// DefaultUsefulLife is the useful life in years given to inventory items
// whose form leaves it blank.
const DefaultUsefulLife = 5

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLCodeAliases maps raw local-code text to the code it stands for.
// Aliases apply before zero-padding.
func WithLCodeAliases(aliases map[string]string) Option {
	return func(r *Recognizer) {
		for k, v := range aliases {
			r.aliases[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
}

// WithDefaultUsefulLife overrides DefaultUsefulLife.
func WithDefaultUsefulLife(years int) Option {
	return func(r *Recognizer) { r.usefulLife = years }
}

// WithClock sets the clock used for the year fallback.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Recognizer) { r.log = log }
}

// New creates a recognizer over the given templates.
func New(t *Templates, opts ...Option) *Recognizer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Recognizer{
		templates:  t,
		aliases:    map[string]string{},
		usefulLife: DefaultUsefulLife,
		now:        time.Now,
		log:        discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("module", "layout")
	return r
}

// Recognize produces the layout of every sheet of wb for a declared kind.
// It never fails: unrecognizable content yields UnknownPlans and warnings.
func (r *Recognizer) Recognize(wb *workbook.Workbook, kind ir.Kind) *Layout {
	l := &Layout{Kind: kind, Plans: []Plan{}, Warnings: []ir.Warning{}}

	if kind.ProducesReport() {
		l.Header, l.Warnings = r.scanHeader(wb)
	}

	for _, sheet := range wb.Sheets {
		ref := sheetRef{Sheet: sheet.Name, Index: sheet.Index}
		var plan Plan
		switch kind {
		case ir.KindInventory:
			plan = r.unitInventoryPlan(sheet, ref)
		case ir.KindAnnualP7:
			plan = r.annualPlan(sheet, ref)
		case ir.KindBuildingRegister:
			plan = r.buildingRegisterPlan(sheet, ref, &l.Header)
		case ir.KindEquipmentRegister:
			plan = r.equipmentRegisterPlan(sheet, ref)
		default:
			plan = &UnknownPlan{sheetRef: ref}
		}
		r.log.WithFields(logrus.Fields{
			"sheet": sheet.Name,
			"class": plan.Class(),
		}).Debug("sheet classified")
		l.Plans = append(l.Plans, plan)
	}

	if kind.ProducesReport() && l.Header.Year == nil {
		year := r.now().Year()
		l.Header.Values.Year = year
		l.Warnings = append(l.Warnings, ir.Warning{
			Code:    ir.WarnAmbiguousHeader,
			Row:     -1,
			Message: "no report year found; using " + strconv.Itoa(year),
		})
	}
	return l
}

// tokenMatcher matches any of a set of tokens at the start of a word.
type tokenMatcher struct {
	re *regexp.Regexp
}

func newTokenMatcher(tokens []string) tokenMatcher {
	if len(tokens) == 0 {
		return tokenMatcher{}
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(strings.ToUpper(t))
	}
	return tokenMatcher{re: regexp.MustCompile(`(?:^|[^A-Z])(?:` + strings.Join(quoted, "|") + `)`)}
}

func (m tokenMatcher) match(s string) bool {
	return m.re != nil && m.re.MatchString(strings.ToUpper(s))
}

// firstNonEmpty returns the column and cell of the first non-empty cell.
func firstNonEmpty(row []workbook.Cell) (int, workbook.Cell) {
	for c, cell := range row {
		if !cell.IsEmpty() {
			return c, cell
		}
	}
	return -1, workbook.Cell{}
}

func hasNumber(row []workbook.Cell) bool {
	for _, cell := range row {
		if cell.Kind == workbook.Number {
			return true
		}
	}
	return false
}
