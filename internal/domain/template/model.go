// Package template holds result templates: ordered trees of fields that
// describe the shape of a structured lab result. The tree operations in
// this package are pure; stored templates are only replaced through an
// edit session commit.
package template

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FieldType string

const (
	TypeNumber   FieldType = "number"
	TypeTextarea FieldType = "textarea"
	TypeGroup    FieldType = "group"
)

func (t FieldType) Valid() bool {
	return t == TypeNumber || t == TypeTextarea || t == TypeGroup
}

var (
	ErrNotFound         = errors.New("template not found")
	ErrInvalidPath      = errors.New("invalid field path")
	ErrNotGroup         = errors.New("field is not a group")
	ErrDuplicateFieldID = errors.New("duplicate field id")
	ErrInvalidField     = errors.New("invalid field")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrAlreadyExists    = errors.New("template already exists")
)

// Field is one node of a template tree. Unit applies to number fields
// and ReferenceRange to number and textarea fields; Children only apply to
// groups.
type Field struct {
	ID             string    `json:"id" yaml:"id"`
	Label          string    `json:"label" yaml:"label"`
	Type           FieldType `json:"type" yaml:"type"`
	Unit           string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty" yaml:"reference_range,omitempty"`
	Children       []Field   `json:"children,omitempty" yaml:"children,omitempty"`
}

func (f *Field) IsGroup() bool { return f.Type == TypeGroup }

type Template struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Fields    []Field   `json:"fields" yaml:"fields"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Path addresses a node by child index from the root; an empty path is
// the root itself.
type Path []int

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func NewTemplateID() string { return "TPL-" + strings.ToUpper(uuid.New().String()[:8]) }

func NewFieldID() string { return "field-" + uuid.New().String() }

// CloneFields deep-copies a field slice. nil stays nil.
func CloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = f
		out[i].Children = CloneFields(f.Children)
	}
	return out
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	c := *t
	c.Fields = CloneFields(t.Fields)
	return &c
}

// Walk visits fields depth-first in pre-order. depth is 0 for root fields.
// Returning false from fn skips the node's children.
func Walk(fields []Field, fn func(f *Field, depth int) bool) {
	walk(fields, 0, fn)
}

func walk(fields []Field, depth int, fn func(*Field, int) bool) {
	for i := range fields {
		f := &fields[i]
		if fn(f, depth) && f.IsGroup() {
			walk(f.Children, depth+1, fn)
		}
	}
}

// Leaves returns every non-group field in pre-order.
func Leaves(fields []Field) []Field {
	var out []Field
	Walk(fields, func(f *Field, _ int) bool {
		if !f.IsGroup() {
			out = append(out, *f)
		}
		return true
	})
	return out
}

// Find returns the field with the given id and its path.
func Find(fields []Field, id string) (*Field, Path, bool) {
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], Path{i}, true
		}
		if fields[i].IsGroup() {
			if f, sub, ok := Find(fields[i].Children, id); ok {
				return f, append(Path{i}, sub...), true
			}
		}
	}
	return nil, nil, false
}

// At resolves path to a node.
func At(fields []Field, path Path) (*Field, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cur := fields
	var node *Field
	for depth, idx := range path {
		if idx < 0 || idx >= len(cur) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
		node = &cur[idx]
		if depth < len(path)-1 {
			if !node.IsGroup() {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
			cur = node.Children
		}
	}
	return node, nil
}

func collectIDs(fields []Field, seen map[string]bool) error {
	var err error
	Walk(fields, func(f *Field, _ int) bool {
		if err != nil {
			return false
		}
		if seen[f.ID] {
			err = fmt.Errorf("%w: %q", ErrDuplicateFieldID, f.ID)
			return false
		}
		seen[f.ID] = true
		return true
	})
	return err
}

func validateField(f *Field) error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidField)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidField, f.ID, f.Type)
	}
	if !f.IsGroup() && len(f.Children) > 0 {
		return fmt.Errorf("%w: %s field %q cannot have children", ErrInvalidField, f.Type, f.ID)
	}
	return nil
}

// ValidateFields checks types and id uniqueness across the whole tree.
func ValidateFields(fields []Field) error {
	var err error
	Walk(fields, func(f *Field, _ int) bool {
		if err == nil {
			err = validateField(f)
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return collectIDs(fields, map[string]bool{})
}

// Validate checks the template name and its field tree.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	return ValidateFields(t.Fields)
}
