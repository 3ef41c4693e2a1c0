// Package workbook opens spreadsheet files as ordered sequences of named
// sheets of typed cells.
//
// Three formats are accepted:
//   - .xlsx (Open XML) read with excelize; date-ness comes from cell styles
//   - .xls (BIFF8) read with extrame/xls; cell text is classified
//   - .pdf accepted for provenance only; it opens with no sheets
//
// Strings are trimmed and an empty string is the same as an empty cell.
// Dates are calendar dates in UTC without time-of-day.
package workbook
