package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/player-forms-api/internal/models"
	appErrors "github.com/noah-isme/player-forms-api/pkg/errors"
	"github.com/noah-isme/player-forms-api/pkg/spreadsheet"
)

// dateLayouts lists accepted cell formats, tried in order. Day-first layouts
// come before the US short form excelize emits for date-typed cells.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"1/2/06",
	"01-02-06",
}

// BuildRoster validates parsed sheets into ordered player groups. A sheet
// missing any required column aborts the whole run before any row is touched;
// individual bad rows are collected and skipped so the rest of the batch
// still renders.
func BuildRoster(sheets []spreadsheet.Sheet) ([]models.SheetGroup, []models.RowError, error) {
	for _, sheet := range sheets {
		if missing := sheet.MissingColumns(models.RequiredColumns); len(missing) > 0 {
			msg := fmt.Sprintf("sheet %q is missing required columns: %s", sheet.Name, strings.Join(missing, ", "))
			return nil, nil, appErrors.Clone(appErrors.ErrMalformedInput, msg)
		}
		if dups := duplicateRequired(sheet); len(dups) > 0 {
			msg := fmt.Sprintf("sheet %q has duplicate required columns: %s", sheet.Name, strings.Join(dups, ", "))
			return nil, nil, appErrors.Clone(appErrors.ErrMalformedInput, msg)
		}
	}

	groups := make([]models.SheetGroup, 0, len(sheets))
	var failures []models.RowError
	for _, sheet := range sheets {
		group := models.SheetGroup{Name: sheet.Name}
		for _, row := range sheet.Rows {
			record, err := buildRecord(row)
			if err != nil {
				failures = append(failures, models.RowError{
					Sheet:   sheet.Name,
					Row:     row.Number,
					Player:  row.Values["name"],
					Code:    appErrors.ErrRowValidation.Code,
					Message: err.Error(),
				})
				continue
			}
			group.Players = append(group.Players, record)
		}
		groups = append(groups, group)
	}
	return groups, failures, nil
}

// duplicateRequired intersects the sheet's duplicated headers with the
// required column set. An ambiguous required column cannot be resolved
// safely, so the whole run aborts rather than filling forms from whichever
// column happened to come first.
func duplicateRequired(sheet spreadsheet.Sheet) []string {
	required := make(map[string]struct{}, len(models.RequiredColumns))
	for _, col := range models.RequiredColumns {
		required[col] = struct{}{}
	}
	var dups []string
	for _, col := range sheet.DuplicateColumns {
		if _, ok := required[col]; ok {
			dups = append(dups, col)
		}
	}
	return dups
}

func buildRecord(row spreadsheet.Row) (models.PlayerRecord, error) {
	record := models.PlayerRecord{SourceRow: row.Number}

	required := map[string]*string{
		"number":         &record.Number,
		"proposed-class": &record.ProposedClass,
		"name":           &record.Name,
		"country":        &record.Country,
		"competition":    &record.Competition,
	}
	for _, col := range []string{"number", "proposed-class", "name", "country", "competition"} {
		value := row.Values[col]
		if value == "" {
			return models.PlayerRecord{}, fmt.Errorf("column %q is empty", col)
		}
		*required[col] = value
	}

	date, err := parseDate(row.Values["date"])
	if err != nil {
		return models.PlayerRecord{}, fmt.Errorf("column \"date\": %w", err)
	}
	record.Date = date

	dob, err := parseDate(row.Values["dob"])
	if err != nil {
		return models.PlayerRecord{}, fmt.Errorf("column \"dob\": %w", err)
	}
	record.DOB = dob

	return record, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("value is empty")
	}
	// Excelize may keep a time component on datetime cells.
	if idx := strings.IndexAny(raw, " T"); idx > 0 {
		if t, err := parseDateOnly(raw[:idx]); err == nil {
			return t, nil
		}
	}
	return parseDateOnly(raw)
}

func parseDateOnly(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}
