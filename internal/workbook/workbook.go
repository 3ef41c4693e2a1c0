package workbook

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatPDF  Format = "pdf"
)

// ErrUnsupportedFormat is returned for extensions other than .xls, .xlsx
// and .pdf.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// FormatOf maps a file name to its format by extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// Workbook is an ordered sequence of sheets.
type Workbook struct {
	Format Format
	Sheets []*Sheet
}

// Open reads the file at path. The format is taken from the extension.
func Open(path string) (*Workbook, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return openXLSX(path)
	case FormatXLS:
		return openXLS(path)
	default:
		return &Workbook{Format: FormatPDF, Sheets: []*Sheet{}}, nil
	}
}

// Sheet returns the sheet at index i, or nil.
func (w *Workbook) Sheet(i int) *Sheet {
	if i < 0 || i >= len(w.Sheets) {
		return nil
	}
	return w.Sheets[i]
}
