// Package spreadsheet parses uploaded workbooks into ordered, header-keyed
// rows. It knows nothing about players or templates; validation of row
// content happens in the caller.
package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by header name. Number is the 1-based row
// number in the source sheet (the header row is row 1).
type Row struct {
	Number int
	Values map[string]string
}

// Sheet is one worksheet's header and data rows, in source order.
type Sheet struct {
	Name    string
	Columns []string
	// DuplicateColumns lists non-empty header names that appear more than
	// once. Row values for such a name come from its first occurrence;
	// callers decide whether a duplicate is fatal.
	DuplicateColumns []string
	Rows             []Row
}

// Parse reads a workbook and returns every sheet in workbook order. Sheets
// without a header row are returned empty; cell values arrive as the
// formatted strings excelize produces.
func Parse(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheets = append(sheets, buildSheet(name, rows))
	}
	return sheets, nil
}

// MissingColumns reports required headers absent from the sheet.
// Matching is case-sensitive.
func (s Sheet) MissingColumns(required []string) []string {
	present := make(map[string]struct{}, len(s.Columns))
	for _, col := range s.Columns {
		present[col] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

func buildSheet(name string, rows [][]string) Sheet {
	sheet := Sheet{Name: name}
	if len(rows) == 0 {
		return sheet
	}
	seen := make(map[string]int, len(rows[0]))
	for _, col := range rows[0] {
		trimmed := strings.TrimSpace(col)
		sheet.Columns = append(sheet.Columns, trimmed)
		if trimmed == "" {
			continue
		}
		seen[trimmed]++
		if seen[trimmed] == 2 {
			sheet.DuplicateColumns = append(sheet.DuplicateColumns, trimmed)
		}
	}
	for i, raw := range rows[1:] {
		if isEmpty(raw) {
			continue
		}
		values := make(map[string]string, len(sheet.Columns))
		for j, col := range sheet.Columns {
			if col == "" {
				continue
			}
			if _, dup := values[col]; dup {
				continue
			}
			// excelize trims trailing empty cells per row.
			if j < len(raw) {
				values[col] = strings.TrimSpace(raw[j])
			} else {
				values[col] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, Row{Number: i + 2, Values: values})
	}
	return sheet
}

func isEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
