package report

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/template"
)

func panel() *template.Template {
	return &template.Template{
		ID:   "TPL-HEMO",
		Name: "Hemogram",
		Fields: []template.Field{
			{ID: "grp_rbc", Label: "Red series", Type: template.TypeGroup, Children: []template.Field{
				{ID: "hgb", Label: "Hemoglobin", Type: template.TypeNumber, Unit: "g/dL", ReferenceRange: "12.1-17.2"},
				{ID: "grp_idx", Label: "Indices", Type: template.TypeGroup, Children: []template.Field{
					{ID: "mcv", Label: "MCV", Type: template.TypeNumber, Unit: "fL", ReferenceRange: "80-100"},
				}},
			}},
			{ID: "obs", Label: "Observations", Type: template.TypeTextarea},
		},
	}
}

func TestRender_PreOrder(t *testing.T) {
	v := result.FieldsValue(map[string]interface{}{"hgb": 0, "obs": "  line one\nline two  "})
	want := []Row{
		{Kind: RowSection, Depth: 0, Label: "Red series"},
		{Kind: RowMeasurement, Depth: 1, FieldID: "hgb", Label: "Hemoglobin", Value: "0", Unit: "g/dL", ReferenceRange: "12.1-17.2"},
		{Kind: RowSection, Depth: 1, Label: "Indices"},
		{Kind: RowMeasurement, Depth: 2, FieldID: "mcv", Label: "MCV", Value: NotAvailable, Unit: "fL", ReferenceRange: "80-100"},
		{Kind: RowNarrative, Depth: 0, FieldID: "obs", Label: "Observations", Value: "  line one\nline two  "},
	}
	if diff := cmp.Diff(want, Render(panel(), v)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_Unstructured(t *testing.T) {
	tests := map[string]struct {
		tpl   *template.Template
		value result.Value
	}{
		"no template":           {nil, result.TextValue("Negative\n")},
		"text against template": {panel(), result.TextValue("Negative\n")},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rows := Render(tt.tpl, tt.value)
			if len(rows) != 1 || rows[0].Kind != RowText || rows[0].Value != "Negative\n" {
				t.Errorf("expected one verbatim text row, got %+v", rows)
			}
		})
	}
}

func TestRender_MalformedEntries(t *testing.T) {
	v := result.FieldsValue(map[string]interface{}{"hgb": map[string]interface{}{"x": 1}, "obs": nil})
	for _, row := range Render(panel(), v) {
		if row.Kind != RowSection && row.Value != NotAvailable {
			t.Errorf("expected placeholder for %s, got %q", row.FieldID, row.Value)
		}
	}
}

func TestRender_EmptyNarrativeKeepsValue(t *testing.T) {
	v := result.FieldsValue(map[string]interface{}{"hgb": "13.5", "obs": ""})
	rows := Render(panel(), v)
	last := rows[len(rows)-1]
	if last.FieldID != "obs" || last.Value != "" {
		t.Fatalf("expected empty observations row, got %+v", last)
	}
	raw, err := json.Marshal(last)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := decoded["value"]; !ok || got != "" {
		t.Errorf("expected an explicit empty value, got %s", raw)
	}
}

func TestForm_MatchesRenderOrder(t *testing.T) {
	v := result.FieldsValue(map[string]interface{}{"hgb": "13.5"})
	form := Form(panel(), v)
	rows := Render(panel(), v)
	if len(form) != len(rows) {
		t.Fatalf("expected %d form fields, got %d", len(rows), len(form))
	}
	for i := range rows {
		if form[i].Label != rows[i].Label {
			t.Errorf("position %d: form %q, report %q", i, form[i].Label, rows[i].Label)
		}
	}

	hgb := form[1]
	if hgb.Placeholder != "Ref: 12.1-17.2" || hgb.Value != "13.5" || hgb.Unit != "g/dL" {
		t.Errorf("unexpected hemoglobin input %+v", hgb)
	}
	if diff := cmp.Diff(template.Path{0, 1, 0}, form[3].Path); diff != "" {
		t.Errorf("mcv path mismatch (-want +got):\n%s", diff)
	}
	if form[4].Value != "" {
		t.Errorf("expected empty observations, got %q", form[4].Value)
	}
}

func TestForm_NoTemplate(t *testing.T) {
	form := Form(nil, result.TextValue("draft"))
	if len(form) != 1 || form[0].Type != template.TypeTextarea || form[0].Value != "draft" {
		t.Errorf("unexpected form %+v", form)
	}
}
