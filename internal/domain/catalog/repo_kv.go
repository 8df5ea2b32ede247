package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/lims/lims/internal/platform/kv"
)

const Namespace = "services"

type kvRepo struct {
	coll *kv.Collection[LabService]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{coll: kv.NewCollection[LabService](store, Namespace)}
}

func (r *kvRepo) Create(ctx context.Context, s *LabService) error {
	if err := r.coll.Put(ctx, s.ID, s); err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*LabService, error) {
	s, err := r.coll.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (r *kvRepo) Update(ctx context.Context, s *LabService) error {
	if err := r.coll.Put(ctx, s.ID, s); err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, id string) error {
	if err := r.coll.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

func (r *kvRepo) List(ctx context.Context) ([]*LabService, error) {
	out, err := r.coll.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}
