// Package pdfform loads AcroForm PDF templates and produces filled copies.
// Templates are immutable once loaded; every Fill works on a fresh copy of
// the template bytes.
package pdfform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrUnknownField is returned when a fill value targets a field the
// template does not define.
var ErrUnknownField = errors.New("unknown form field")

// Template is a read-only PDF form layout with a fixed field inventory.
type Template struct {
	name   string
	data   []byte
	fields map[string]struct{}
	conf   *model.Configuration
}

// Load parses template bytes and inventories the form fields.
func Load(name string, data []byte) (*Template, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	fields, err := api.FormFields(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("inspect template %s: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("template %s has no fillable fields", name)
	}

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name != "" {
			set[f.Name] = struct{}{}
		}
		if f.ID != "" {
			set[f.ID] = struct{}{}
		}
	}

	return &Template{name: name, data: data, fields: set, conf: conf}, nil
}

// LoadFile reads a template from disk.
func LoadFile(name, path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	return Load(name, data)
}

// Name returns the template identifier supplied at load time.
func (t *Template) Name() string {
	return t.name
}

// Fields returns the template's field names in sorted order.
func (t *Template) Fields() []string {
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the template defines the named field.
func (t *Template) Has(name string) bool {
	_, ok := t.fields[name]
	return ok
}

// formData is the pdfcpu form-fill JSON contract.
type formData struct {
	Forms []formEntry `json:"forms"`
}

type formEntry struct {
	TextFields []textField `json:"textfield,omitempty"`
}

type textField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

// Fill sets every named field to its value and returns the filled PDF.
// Fields absent from values keep their default (blank) state. A value
// naming a field the template lacks is a contract violation and fails the
// whole fill.
func (t *Template) Fill(values map[string]string) ([]byte, error) {
	entry := formEntry{TextFields: make([]textField, 0, len(values))}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !t.Has(name) {
			return nil, fmt.Errorf("template %s: field %q: %w", t.name, name, ErrUnknownField)
		}
		entry.TextFields = append(entry.TextFields, textField{Name: name, Value: values[name]})
	}

	payload, err := json.Marshal(formData{Forms: []formEntry{entry}})
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}

	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(t.data), bytes.NewReader(payload), &out, t.conf); err != nil {
		return nil, fmt.Errorf("fill template %s: %w", t.name, err)
	}
	return out.Bytes(), nil
}
