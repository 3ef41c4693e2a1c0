package ir

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// zeroWords are cell values the forms use to mean "nothing".
var zeroWords = map[string]bool{
	"":        true,
	"WALA":    true,
	"WALA PO": true,
	"-":       true,
	"N/A":     true,
	"NA":      true,
}

var (
	moneyFallback  = regexp.MustCompile(`-?\d[\d.,]*`)
	classification = regexp.MustCompile(`^[A-Z]-?\d$`)
	digitRun       = regexp.MustCompile(`\d+`)
)

// IsZeroWord reports whether s is one of the placeholder values treated as
// zero (WALA, WALA PO, -, N/A or blank).
func IsZeroWord(s string) bool {
	return zeroWords[strings.ToUpper(strings.Join(strings.Fields(s), " "))]
}

// ParseMoney parses a money cell. It strips the peso sign and PHP prefix,
// drops thousands separators, reads parenthesized values as negative and
// treats the placeholder words as zero. When the cleaned text is not a
// number it falls back to the first numeric substring.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if IsZeroWord(s) {
		return decimal.Zero, nil
	}

	clean := strings.ReplaceAll(s, "₱", "")
	if upper := strings.ToUpper(clean); strings.HasPrefix(upper, "PHP") {
		clean = clean[3:]
	}
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(clean)

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSpace(clean[1 : len(clean)-1])
	}
	if IsZeroWord(clean) {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		m := moneyFallback.FindString(s)
		if m == "" {
			return decimal.Zero, fmt.Errorf("parse money %q: no number", s)
		}
		d, err = decimal.NewFromString(strings.TrimRight(strings.ReplaceAll(m, ",", ""), "."))
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
		}
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// MoneyFromFloat converts a numeric cell to money rounded to centavos.
func MoneyFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// DateLayouts are tried in order; the first match wins.
var DateLayouts = []string{
	"January 2, 2006",
	"January 2006",
	"1/2/2006",
	"2/1/2006",
	"2006-01-02",
	"Jan 2, 2006",
	"Jan. 2, 2006",
}

// ParseDate parses a date cell's text against DateLayouts. Text after a
// leading "label:" is used when the whole string does not parse.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseDateLayouts(s); ok {
		return t, true
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && i < len(s)-1 {
		return parseDateLayouts(strings.TrimSpace(s[i+1:]))
	}
	return time.Time{}, false
}

func parseDateLayouts(s string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// DateOnly drops the time-of-day and location of t.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseQuantity parses a quantity cell. Non-integer values are floored and
// reported through floored.
func ParseQuantity(s string) (qty int, floored bool, err error) {
	s = strings.TrimSpace(s)
	if IsZeroWord(s) {
		return 0, false, nil
	}
	f, perr := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if perr != nil {
		m := digitRun.FindString(s)
		if m == "" {
			return 0, false, fmt.Errorf("parse quantity %q: no number", s)
		}
		f, _ = strconv.ParseFloat(m, 64)
	}
	return QuantityFromFloat(f)
}

// QuantityFromFloat floors f to an integer quantity.
func QuantityFromFloat(f float64) (qty int, floored bool, err error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("parse quantity: not finite")
	}
	fl := math.Floor(f)
	return int(fl), fl != f, nil
}

// NormalizeClassification upper-cases a classification like "a-1" when it
// matches the letter-digit pattern and otherwise returns the raw text.
func NormalizeClassification(s string) string {
	s = strings.TrimSpace(s)
	if up := strings.ToUpper(strings.ReplaceAll(s, " ", "")); classification.MatchString(up) {
		return up
	}
	return s
}

// Digits returns the digits of s in order.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FirstNumber returns the first run of digits in s.
func FirstNumber(s string) string {
	return digitRun.FindString(s)
}

// PadCode zero-pads a digit string to width.
func PadCode(digits string, width int) string {
	if len(digits) >= width {
		return digits
	}
	return strings.Repeat("0", width-len(digits)) + digits
}

// NormalizeDCode turns raw district-code text into a five-digit code.
// Longer digit runs are truncated to their first five digits.
func NormalizeDCode(raw string) string {
	d := Digits(raw)
	if d == "" {
		return DefaultDCode
	}
	if len(d) > 5 {
		d = d[:5]
	}
	return PadCode(d, 5)
}

// NormalizeLCode turns raw local-code text into a zero-padded code. A value
// that is not purely digits or longer than four digits is suspicious and
// yields DefaultLCode.
func NormalizeLCode(raw string) (code string, suspicious bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLCode, false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && f >= 0 {
		raw = strconv.FormatInt(int64(f), 10)
	}
	if len(raw) > 4 || Digits(raw) != raw {
		return DefaultLCode, true
	}
	return PadCode(raw, 3), false
}

// Fallback codes when a workbook carries none.
const (
	DefaultDCode = "00000"
	DefaultLCode = "000"
)
