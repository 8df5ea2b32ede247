package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lims/lims/internal/platform/kv"
)

type kvRepo struct {
	coll *kv.Collection[Item]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{coll: kv.NewCollection[Item](store, Namespace)}
}

func (r *kvRepo) Create(ctx context.Context, item *Item) error {
	if err := r.coll.Put(ctx, item.ID, item); err != nil {
		return fmt.Errorf("create inventory item: %w", err)
	}
	return nil
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*Item, error) {
	item, err := r.coll.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	return item, nil
}

func (r *kvRepo) Update(ctx context.Context, item *Item) error {
	if err := r.coll.Put(ctx, item.ID, item); err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, id string) error {
	if err := r.coll.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	return nil
}

func (r *kvRepo) List(ctx context.Context) ([]*Item, error) {
	out, err := r.coll.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
