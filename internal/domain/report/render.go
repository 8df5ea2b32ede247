// Package report lays out results for data entry and printing. The form
// and the printed rows come from the same pre-order walk of the template so
// both list fields in the same order.
package report

import (
	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/template"
)

// NotAvailable stands in for a measurement or narrative with no entry.
const NotAvailable = "N/A"

type RowKind string

const (
	RowSection     RowKind = "section"
	RowMeasurement RowKind = "measurement"
	RowNarrative   RowKind = "narrative"
	RowText        RowKind = "text"
)

// Row is one printable line of a result.
type Row struct {
	Kind           RowKind `json:"kind"`
	Depth          int     `json:"depth"`
	FieldID        string  `json:"field_id,omitempty"`
	Label          string  `json:"label,omitempty"`
	Value          string  `json:"value"`
	Unit           string  `json:"unit,omitempty"`
	ReferenceRange string  `json:"reference_range,omitempty"`
}

// Render walks tpl depth first and binds v to each node. A nil template or
// a text value yields a single verbatim text row.
func Render(tpl *template.Template, v result.Value) []Row {
	if tpl == nil || !v.IsStructured() {
		return []Row{{Kind: RowText, Value: v.Text()}}
	}
	rows := make([]Row, 0, 8)
	template.Walk(tpl.Fields, func(f *template.Field, depth int) bool {
		row := Row{Depth: depth, FieldID: f.ID, Label: f.Label}
		switch f.Type {
		case template.TypeGroup:
			row.Kind = RowSection
			row.FieldID = ""
		case template.TypeTextarea:
			row.Kind = RowNarrative
			row.Value = entry(v, f.ID)
		default:
			row.Kind = RowMeasurement
			row.Value = entry(v, f.ID)
			row.Unit = f.Unit
			row.ReferenceRange = f.ReferenceRange
		}
		rows = append(rows, row)
		return true
	})
	return rows
}

// entry returns the bound text for a leaf, untrimmed. Missing, null and
// non-scalar entries map to the placeholder.
func entry(v result.Value, id string) string {
	raw, ok := v.Get(id)
	if !ok {
		return NotAvailable
	}
	s, ok := result.ScalarString(raw)
	if !ok {
		return NotAvailable
	}
	return s
}

// FormField is one input of the result entry form.
type FormField struct {
	Path        template.Path      `json:"path"`
	FieldID     string             `json:"field_id"`
	Label       string             `json:"label"`
	Type        template.FieldType `json:"type"`
	Depth       int                `json:"depth"`
	Unit        string             `json:"unit,omitempty"`
	Placeholder string             `json:"placeholder,omitempty"`
	Value       string             `json:"value"`
}

// Form lists the inputs for v in the same order Render prints them. Group
// entries act as headings and carry no value. Without a template the form
// is a single free-text input.
func Form(tpl *template.Template, v result.Value) []FormField {
	if tpl == nil {
		return []FormField{{Type: template.TypeTextarea, Value: v.Text()}}
	}
	var out []FormField
	var walk func(fields []template.Field, prefix template.Path, depth int)
	walk = func(fields []template.Field, prefix template.Path, depth int) {
		for i := range fields {
			f := &fields[i]
			path := append(append(template.Path{}, prefix...), i)
			ff := FormField{Path: path, FieldID: f.ID, Label: f.Label, Type: f.Type, Depth: depth}
			switch f.Type {
			case template.TypeGroup:
				out = append(out, ff)
				walk(f.Children, path, depth+1)
				continue
			case template.TypeTextarea:
				if f.ReferenceRange != "" {
					ff.Placeholder = "Reference values: " + f.ReferenceRange
				}
			default:
				ff.Unit = f.Unit
				if f.ReferenceRange != "" {
					ff.Placeholder = "Ref: " + f.ReferenceRange
				}
			}
			if raw, ok := v.Get(f.ID); ok {
				ff.Value, _ = result.ScalarString(raw)
			}
			out = append(out, ff)
		}
	}
	walk(tpl.Fields, nil, 0)
	return out
}
