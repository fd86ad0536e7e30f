package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// Dataset is tabular report content shared by the CSV and PDF exporters.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// FailureRecord is one skipped row or form in a generation run.
type FailureRecord struct {
	Sheet   string
	Row     int
	Player  string
	Code    string
	Message string
}

// FailureDataset lays failure records out as the error-report table. Row
// numbers are 1-based spreadsheet positions, so a reader can jump straight
// to the offending line in the uploaded file.
func FailureDataset(records []FailureRecord) Dataset {
	dataset := Dataset{Headers: []string{"Sheet", "Row", "Player", "Code", "Message"}}
	for _, r := range records {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Sheet":   r.Sheet,
			"Row":     strconv.Itoa(r.Row),
			"Player":  r.Player,
			"Code":    r.Code,
			"Message": r.Message,
		})
	}
	return dataset
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderFailures produces the errors.csv content for a generation run.
func (e *CSVExporter) RenderFailures(records []FailureRecord) ([]byte, error) {
	return e.Render(FailureDataset(records))
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
