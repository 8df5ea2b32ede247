package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/lims/lims/internal/platform/kv"
)

type kvRepo struct {
	coll *kv.Collection[Account]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{coll: kv.NewCollection[Account](store, Namespace)}
}

func (r *kvRepo) Create(ctx context.Context, a *Account) error {
	if err := r.coll.Put(ctx, a.ID, a); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	a, err := r.coll.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return a, nil
}

func (r *kvRepo) Update(ctx context.Context, a *Account) error {
	if err := r.coll.Put(ctx, a.ID, a); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, id string) error {
	if err := r.coll.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (r *kvRepo) List(ctx context.Context) ([]*Account, error) {
	out, err := r.coll.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}
