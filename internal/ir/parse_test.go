package ir

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1,234.50", "1234.5"},
		{"₱ 100,000", "100000"},
		{"PHP 5,000.00", "5000"},
		{"php5000", "5000"},
		{"(1,500.00)", "-1500"},
		{"WALA", "0"},
		{"wala po", "0"},
		{"-", "0"},
		{"N/A", "0"},
		{"", "0"},
		{"approx 2,500 only", "2500"},
		{"-75", "-75"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseMoneyNoNumber(t *testing.T) {
	_, err := ParseMoney("see remarks")
	assert.Error(t, err)
}

func TestMoneyFromFloat(t *testing.T) {
	assert.Equal(t, "1234.57", MoneyFromFloat(1234.5678).StringFixed(2))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"July 4, 2024", want},
		{"July 04, 2024", want},
		{"July 2024", time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{"7/4/2024", want},
		{"07/04/2024", want},
		{"25/12/2023", time.Date(2023, time.December, 25, 0, 0, 0, 0, time.UTC)},
		{"2024-07-04", want},
		{"Petsa ng Pag-uulat: July 4, 2024", want},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, ok := ParseDate("not a date")
	assert.False(t, ok)
	_, ok = ParseDate("")
	assert.False(t, ok)
}

func TestParseQuantity(t *testing.T) {
	q, floored, err := ParseQuantity("3")
	require.NoError(t, err)
	assert.Equal(t, 3, q)
	assert.False(t, floored)

	q, floored, err = ParseQuantity("2.7")
	require.NoError(t, err)
	assert.Equal(t, 2, q)
	assert.True(t, floored)

	q, _, err = ParseQuantity("5 pcs")
	require.NoError(t, err)
	assert.Equal(t, 5, q)

	q, _, err = ParseQuantity("WALA")
	require.NoError(t, err)
	assert.Equal(t, 0, q)

	_, _, err = ParseQuantity("many")
	assert.Error(t, err)
}

func TestNormalizeClassification(t *testing.T) {
	assert.Equal(t, "A-1", NormalizeClassification("a-1"))
	assert.Equal(t, "B2", NormalizeClassification(" B2 "))
	assert.Equal(t, "Concrete, 2 storey", NormalizeClassification("Concrete, 2 storey"))
}

func TestNormalizeDCode(t *testing.T) {
	assert.Equal(t, "01009", NormalizeDCode("1009"))
	assert.Equal(t, "01009", NormalizeDCode("01009"))
	assert.Equal(t, "12345", NormalizeDCode("1234567"))
	assert.Equal(t, "00000", NormalizeDCode("none"))
}

func TestNormalizeLCode(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		suspicious bool
	}{
		{"1", "001", false},
		{"003", "003", false},
		{"3.0", "003", false},
		{"1234", "1234", false},
		{"", "000", false},
		{"QC01", "000", true},
		{"12345", "000", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, suspicious := NormalizeLCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.suspicious, suspicious)
		})
	}
}
