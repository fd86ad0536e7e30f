package models

// TemplateKind identifies one of the two bundled PDF form layouts.
type TemplateKind string

const (
	TemplateWorksheet  TemplateKind = "worksheet"
	TemplateAssessment TemplateKind = "assessment"
)

// TemplateKinds enumerates every template each row is rendered against, in
// output order.
var TemplateKinds = []TemplateKind{TemplateWorksheet, TemplateAssessment}

// Folder returns the per-form subfolder used inside the archive.
func (k TemplateKind) Folder() string {
	switch k {
	case TemplateWorksheet:
		return "Stages 2C and 3"
	case TemplateAssessment:
		return "Stages 2AB"
	default:
		return string(k)
	}
}

// FileSuffix returns the trailing part of generated filenames.
func (k TemplateKind) FileSuffix() string {
	switch k {
	case TemplateWorksheet:
		return "Worksheet-Stages-2C-and-3"
	case TemplateAssessment:
		return "Assessment-Form-Stages-2AB"
	default:
		return string(k)
	}
}

// FieldMapping is the per-row, per-template set of field values used to fill
// a PDF. Keys must be a subset of the target template's field set.
type FieldMapping map[string]string
