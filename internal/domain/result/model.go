// Package result holds per-invoice, per-service result instances, decides
// when they are complete and drives their pending/completed status.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

var (
	ErrNotFound     = errors.New("result not found")
	ErrInvalidValue = errors.New("invalid result value")
	ErrNotInInvoice = errors.New("result does not belong to invoice")
)

// Value is either free text or a flat map from field id to scalar. It
// encodes as a JSON string or a JSON object respectively.
type Value struct {
	text       string
	fields     map[string]interface{}
	structured bool
}

func TextValue(s string) Value { return Value{text: s} }

// FieldsValue copies m into a structured value. A nil map yields an empty
// structured value.
func FieldsValue(m map[string]interface{}) Value {
	v := Value{fields: make(map[string]interface{}, len(m)), structured: true}
	for k, x := range m {
		v.fields[k] = x
	}
	return v
}

func (v Value) IsStructured() bool { return v.structured }

// Text returns the free-text body; empty for structured values.
func (v Value) Text() string { return v.text }

// Get returns the raw entry for a field id.
func (v Value) Get(id string) (interface{}, bool) {
	x, ok := v.fields[id]
	return x, ok
}

// Fields returns a copy of the structured entries.
func (v Value) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(v.fields))
	for k, x := range v.fields {
		out[k] = x
	}
	return out
}

// Equal compares canonical JSON encodings.
func (v Value) Equal(o Value) bool {
	a, errA := json.Marshal(v)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.structured {
		return json.Marshal(v.text)
	}
	if v.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v.fields)
}

// UnmarshalJSON accepts a string, an object or null (empty text). Numbers
// inside objects keep their literal form.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		*v = TextValue(s)
		return nil
	case data[0] == '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		m := map[string]interface{}{}
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		*v = Value{fields: m, structured: true}
		return nil
	default:
		return fmt.Errorf("%w: expected a string or an object", ErrInvalidValue)
	}
}

// Result is one service's result on one invoice.
type Result struct {
	ID         string     `json:"id"`
	InvoiceID  string     `json:"invoice_id"`
	PatientID  string     `json:"patient_id"`
	ServiceID  string     `json:"service_id"`
	Status     Status     `json:"status"`
	ReportedBy string     `json:"reported_by,omitempty"`
	ReportDate *time.Time `json:"report_date"`
	Value      Value      `json:"value"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (r *Result) IsCompleted() bool { return r.Status == StatusCompleted }

func NewResultID() string { return "RES-" + uuid.New().String() }

// NewPending builds the empty result created for an invoiced service: an
// empty map when the service has a template, empty text otherwise.
func NewPending(invoiceID, patientID, serviceID string, structured bool, now time.Time) *Result {
	v := TextValue("")
	if structured {
		v = FieldsValue(nil)
	}
	return &Result{
		ID:        NewResultID(),
		InvoiceID: invoiceID,
		PatientID: patientID,
		ServiceID: serviceID,
		Status:    StatusPending,
		Value:     v,
		CreatedAt: now,
	}
}

// AllCompleted reports whether a non-empty set is entirely completed.
func AllCompleted(results []*Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.IsCompleted() {
			return false
		}
	}
	return true
}

// CountCompleted returns how many results are completed.
func CountCompleted(results []*Result) int {
	n := 0
	for _, r := range results {
		if r.IsCompleted() {
			n++
		}
	}
	return n
}

// SortByCreated orders results by creation time, then id.
func SortByCreated(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
}
