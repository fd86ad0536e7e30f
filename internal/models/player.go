package models

import "time"

// RequiredColumns lists the spreadsheet headers every sheet must provide.
// Matching is case-sensitive; column order does not matter.
var RequiredColumns = []string{
	"number",
	"proposed-class",
	"name",
	"country",
	"date",
	"competition",
	"dob",
}

// PlayerRecord is one validated spreadsheet row.
type PlayerRecord struct {
	Number        string    `json:"number"`
	ProposedClass string    `json:"proposedClass"`
	Name          string    `json:"name"`
	Country       string    `json:"country"`
	Date          time.Time `json:"date"`
	Competition   string    `json:"competition"`
	DOB           time.Time `json:"dob"`

	// SourceRow is the 1-based row number in the source sheet, kept for
	// error reporting.
	SourceRow int `json:"sourceRow"`
}

// SheetGroup is one worksheet's validated rows in source order. The sheet
// name becomes the top-level folder in the output archive.
type SheetGroup struct {
	Name    string         `json:"name"`
	Players []PlayerRecord `json:"players"`
}

// RowError records a skipped row or form without halting the batch.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Player  string `json:"player,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
