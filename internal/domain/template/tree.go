package template

import (
	"fmt"
)

// FieldPatch carries the properties UpdateField may change. Nil members are
// left untouched. Field ids are stable and cannot be patched.
type FieldPatch struct {
	Label          *string    `json:"label,omitempty"`
	Type           *FieldType `json:"type,omitempty"`
	Unit           *string    `json:"unit,omitempty"`
	ReferenceRange *string    `json:"reference_range,omitempty"`
}

// AddField returns a copy of fields with field appended as the last child
// of the group at parent, or as the last root field when parent is empty.
func AddField(fields []Field, parent Path, field Field) ([]Field, error) {
	added := CloneFields([]Field{field})
	if err := ValidateFields(added); err != nil {
		return nil, err
	}
	if added[0].IsGroup() && added[0].Children == nil {
		added[0].Children = []Field{}
	}

	seen := map[string]bool{}
	if err := collectIDs(fields, seen); err != nil {
		return nil, err
	}
	if err := collectIDs(added, seen); err != nil {
		return nil, err
	}

	return editChildren(fields, parent, func(children []Field) ([]Field, error) {
		return append(children, added[0]), nil
	})
}

// UpdateField returns a copy of fields with patch merged into the node at
// path. Turning a group into a leaf drops its whole subtree; every other
// property survives a type change.
func UpdateField(fields []Field, path Path, patch FieldPatch) ([]Field, error) {
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidField, *patch.Type)
	}

	out := CloneFields(fields)
	node, err := At(out, path)
	if err != nil {
		return nil, err
	}

	if patch.Label != nil {
		node.Label = *patch.Label
	}
	if patch.Unit != nil {
		node.Unit = *patch.Unit
	}
	if patch.ReferenceRange != nil {
		node.ReferenceRange = *patch.ReferenceRange
	}
	if patch.Type != nil {
		node.Type = *patch.Type
	}

	switch node.Type {
	case TypeGroup:
		if node.Children == nil {
			node.Children = []Field{}
		}
	default:
		node.Children = nil
	}
	return out, nil
}

// RemoveField returns a copy of fields without the node at path and its
// subtree. An emptied group stays in place with no children.
func RemoveField(fields []Field, path Path) ([]Field, error) {
	if _, err := At(fields, path); err != nil {
		return nil, err
	}
	idx := path[len(path)-1]
	return editChildren(fields, path[:len(path)-1], func(siblings []Field) ([]Field, error) {
		return append(siblings[:idx:idx], siblings[idx+1:]...), nil
	})
}

// MoveField returns a copy of fields with the node at path moved to index
// to among its siblings. Nodes never change parent.
func MoveField(fields []Field, path Path, to int) ([]Field, error) {
	if _, err := At(fields, path); err != nil {
		return nil, err
	}
	from := path[len(path)-1]
	return editChildren(fields, path[:len(path)-1], func(siblings []Field) ([]Field, error) {
		if to < 0 || to >= len(siblings) {
			return nil, fmt.Errorf("%w: target index %d out of range", ErrInvalidPath, to)
		}
		moved := siblings[from]
		rest := append(siblings[:from:from], siblings[from+1:]...)
		out := make([]Field, 0, len(siblings))
		out = append(out, rest[:to]...)
		out = append(out, moved)
		return append(out, rest[to:]...), nil
	})
}

// editChildren deep-copies fields and replaces the child list of the group
// at parent (the root list when parent is empty) with fn's result.
func editChildren(fields []Field, parent Path, fn func([]Field) ([]Field, error)) ([]Field, error) {
	out := CloneFields(fields)
	if len(parent) == 0 {
		return fn(out)
	}
	node, err := At(out, parent)
	if err != nil {
		return nil, err
	}
	if !node.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, parent)
	}
	children, err := fn(node.Children)
	if err != nil {
		return nil, err
	}
	node.Children = children
	return out, nil
}
