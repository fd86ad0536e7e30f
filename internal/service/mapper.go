package service

import (
	"fmt"

	"github.com/noah-isme/player-forms-api/internal/models"
)

// formDateLayout renders dates the way the printed forms expect them.
const formDateLayout = "02-01-2006"

// FieldValues maps a player record onto the named fields of a template kind.
// The worksheet carries every field twice: once plain and once with an "x"
// prefix for the carbon-copy half of the page.
func FieldValues(record models.PlayerRecord, kind models.TemplateKind) (models.FieldMapping, error) {
	switch kind {
	case models.TemplateWorksheet:
		base := map[string]string{
			"number":         record.Number,
			"proposed-class": record.ProposedClass,
			"name":           record.Name,
			"country":        record.Country,
			"date":           record.Date.Format(formDateLayout),
			"competition":    record.Competition,
		}
		mapping := make(models.FieldMapping, len(base)*2)
		for name, value := range base {
			mapping[name] = value
			mapping["x"+name] = value
		}
		return mapping, nil
	case models.TemplateAssessment:
		return models.FieldMapping{
			"name":    record.Name,
			"country": record.Country,
			"dob":     record.DOB.Format(formDateLayout),
		}, nil
	default:
		return nil, fmt.Errorf("unknown template kind %q", kind)
	}
}

// FormFilename builds the archive filename for one player's rendered form.
func FormFilename(record models.PlayerRecord, kind models.TemplateKind) string {
	return fmt.Sprintf("%s-%s-%s.pdf", record.Name, record.Number, kind.FileSuffix())
}
