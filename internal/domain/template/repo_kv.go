package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/lims/lims/internal/platform/kv"
)

const Namespace = "templates"

type kvRepo struct {
	coll *kv.Collection[Template]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{coll: kv.NewCollection[Template](store, Namespace)}
}

func (r *kvRepo) Create(ctx context.Context, t *Template) error {
	if err := r.coll.Put(ctx, t.ID, t); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*Template, error) {
	t, err := r.coll.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *kvRepo) Update(ctx context.Context, t *Template) error {
	if _, err := r.GetByID(ctx, t.ID); err != nil {
		return err
	}
	if err := r.coll.Put(ctx, t.ID, t); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, id string) error {
	if err := r.coll.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func (r *kvRepo) List(ctx context.Context) ([]*Template, error) {
	out, err := r.coll.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}
