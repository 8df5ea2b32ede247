package result

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lims/lims/internal/domain/template"
)

// IsComplete decides completeness of v against tpl (nil when the service
// has no usable template). Free text is complete when it has non-blank
// content. A structured value is complete when every leaf of tpl has a
// non-blank scalar entry; 0 counts as present. A value whose shape does not
// match the template is never complete.
func IsComplete(tpl *template.Template, v Value) bool {
	if tpl == nil {
		return !v.IsStructured() && strings.TrimSpace(v.Text()) != ""
	}
	if !v.IsStructured() {
		return false
	}
	for _, leaf := range template.Leaves(tpl.Fields) {
		raw, ok := v.Get(leaf.ID)
		if !ok {
			return false
		}
		s, ok := ScalarString(raw)
		if !ok || strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// ScalarString renders a stored entry as text. ok is false for null and for
// non-scalar entries.
func ScalarString(x interface{}) (string, bool) {
	switch t := x.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
