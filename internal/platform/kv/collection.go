package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection stores JSON documents of type T in a single namespace.
type Collection[T any] struct {
	store     Store
	namespace string
}

// NewCollection binds a namespace of store to document type T.
func NewCollection[T any](store Store, namespace string) *Collection[T] {
	return &Collection[T]{store: store, namespace: namespace}
}

// Namespace returns the namespace the collection writes to.
func (c *Collection[T]) Namespace() string { return c.namespace }

// Get decodes the document stored under id. A missing id returns ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, err := c.store.Get(ctx, c.namespace, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.namespace, id, err)
	}
	return &v, nil
}

// Put encodes v and stores it under id.
func (c *Collection[T]) Put(ctx context.Context, id string, v *T) error {
	op, err := c.SetOp(id, v)
	if err != nil {
		return err
	}
	return c.store.Apply(ctx, []Op{op})
}

// Delete removes the document stored under id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Remove(ctx, c.namespace, id)
}

// All decodes every document in the namespace, ordered by id. Entries that
// fail to decode are skipped.
func (c *Collection[T]) All(ctx context.Context) ([]*T, error) {
	entries, err := c.store.List(ctx, c.namespace)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

// SetOp encodes v into an operation for use with Store.Apply.
func (c *Collection[T]) SetOp(id string, v *T) (Op, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Op{}, fmt.Errorf("encode %s/%s: %w", c.namespace, id, err)
	}
	return SetOp(c.namespace, id, raw), nil
}

// RemoveOp builds a removal of id for use with Store.Apply.
func (c *Collection[T]) RemoveOp(id string) Op {
	return RemoveOp(c.namespace, id)
}
