package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestParseReadsHeaderAndRows(t *testing.T) {
	reader := buildWorkbook(t, map[string][][]interface{}{
		"TeamA": {
			{"number", "name", "country"},
			{"7", "Alice", "GBR"},
			{"9", "Bob", "FRA"},
		},
	})

	sheets, err := Parse(reader)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	sheet := sheets[0]
	require.Equal(t, "TeamA", sheet.Name)
	require.Equal(t, []string{"number", "name", "country"}, sheet.Columns)
	require.Len(t, sheet.Rows, 2)
	require.Equal(t, 2, sheet.Rows[0].Number)
	require.Equal(t, "Alice", sheet.Rows[0].Values["name"])
	require.Equal(t, 3, sheet.Rows[1].Number)
	require.Equal(t, "FRA", sheet.Rows[1].Values["country"])
}

func TestParseSkipsEmptyRowsButKeepsNumbering(t *testing.T) {
	reader := buildWorkbook(t, map[string][][]interface{}{
		"TeamA": {
			{"number", "name"},
			{"7", "Alice"},
			{"", ""},
			{"9", "Bob"},
		},
	})

	sheets, err := Parse(reader)
	require.NoError(t, err)
	require.Len(t, sheets[0].Rows, 2)
	require.Equal(t, 2, sheets[0].Rows[0].Number)
	require.Equal(t, 4, sheets[0].Rows[1].Number)
}

func TestParseShortRowsFillBlankCells(t *testing.T) {
	reader := buildWorkbook(t, map[string][][]interface{}{
		"TeamA": {
			{"number", "name", "country"},
			{"7", "Alice"},
		},
	})

	sheets, err := Parse(reader)
	require.NoError(t, err)
	require.Len(t, sheets[0].Rows, 1)
	require.Equal(t, "", sheets[0].Rows[0].Values["country"])
}

func TestParseMultipleSheetsKeepOrder(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "TeamA"))
	_, err := f.NewSheet("TeamB")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("TeamA", "A1", &[]interface{}{"name"}))
	require.NoError(t, f.SetSheetRow("TeamB", "A1", &[]interface{}{"name"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheets, err := Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	require.Equal(t, "TeamA", sheets[0].Name)
	require.Equal(t, "TeamB", sheets[1].Name)
}

func TestParseRecordsDuplicateHeaders(t *testing.T) {
	reader := buildWorkbook(t, map[string][][]interface{}{
		"TeamA": {
			{"number", "name", "name"},
			{"7", "Alice", "Alicia"},
		},
	})

	sheets, err := Parse(reader)
	require.NoError(t, err)

	sheet := sheets[0]
	require.Equal(t, []string{"name"}, sheet.DuplicateColumns)
	// First occurrence wins; the shadowed column never leaks through.
	require.Equal(t, "Alice", sheet.Rows[0].Values["name"])
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not a workbook")))
	require.Error(t, err)
}

func TestMissingColumns(t *testing.T) {
	sheet := Sheet{Columns: []string{"number", "name"}}
	missing := sheet.MissingColumns([]string{"number", "name", "dob"})
	require.Equal(t, []string{"dob"}, missing)

	// Case-sensitive: "Name" does not satisfy "name".
	sheet = Sheet{Columns: []string{"Number", "name"}}
	missing = sheet.MissingColumns([]string{"number", "name"})
	require.Equal(t, []string{"number"}, missing)
}
