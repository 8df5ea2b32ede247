package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/lims/lims/internal/platform/kv"
)

const Namespace = "patients"

type kvRepo struct {
	coll *kv.Collection[Patient]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{coll: kv.NewCollection[Patient](store, Namespace)}
}

func (r *kvRepo) Create(ctx context.Context, p *Patient) error {
	if err := r.coll.Put(ctx, p.ID, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := r.coll.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// GetByDocumentID scans the namespace; the registry of a single lab is
// small enough that no secondary index is kept.
func (r *kvRepo) GetByDocumentID(ctx context.Context, documentID string) (*Patient, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.DocumentID == documentID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *kvRepo) Update(ctx context.Context, p *Patient) error {
	if err := r.coll.Put(ctx, p.ID, p); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, id string) error {
	if err := r.coll.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func (r *kvRepo) List(ctx context.Context) ([]*Patient, error) {
	out, err := r.coll.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return out, nil
}
