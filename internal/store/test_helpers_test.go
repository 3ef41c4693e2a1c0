package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var fixedTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

// createTestStore opens a fresh database under the test's temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedReport creates the district, local and report for the given codes.
func seedReport(t *testing.T, s *Store, dcode, lcode string, year int) Report {
	t.Helper()
	ctx := context.Background()
	d, _, err := s.EnsureDistrict(ctx, dcode, "District "+dcode, fixedTime)
	if err != nil {
		t.Fatalf("EnsureDistrict() failed: %v", err)
	}
	l, _, err := s.EnsureLocal(ctx, d.ID, lcode, "Local "+lcode, fixedTime)
	if err != nil {
		t.Fatalf("EnsureLocal() failed: %v", err)
	}
	r, err := s.UpsertReport(ctx, l.ID, year, nil, fixedTime)
	if err != nil {
		t.Fatalf("UpsertReport() failed: %v", err)
	}
	return r
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
