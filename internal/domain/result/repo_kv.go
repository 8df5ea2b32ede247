package result

import (
	"context"
	"errors"
	"fmt"

	"github.com/lims/lims/internal/platform/kv"
)

const Namespace = "results"

type kvRepo struct {
	store kv.Store
	coll  *kv.Collection[Result]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{store: store, coll: NewCollection(store)}
}

// NewCollection exposes the result namespace to packages that write results
// alongside their own documents in one Apply.
func NewCollection(store kv.Store) *kv.Collection[Result] {
	return kv.NewCollection[Result](store, Namespace)
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*Result, error) {
	res, err := r.coll.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}

func (r *kvRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*Result, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Result, 0, 4)
	for _, res := range all {
		if res.InvoiceID == invoiceID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *kvRepo) List(ctx context.Context) ([]*Result, error) {
	all, err := r.coll.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	SortByCreated(all)
	return all, nil
}

func (r *kvRepo) Update(ctx context.Context, res *Result) error {
	return r.UpdateMany(ctx, []*Result{res})
}

func (r *kvRepo) UpdateMany(ctx context.Context, rs []*Result) error {
	ops := make([]kv.Op, 0, len(rs))
	for _, res := range rs {
		op, err := r.coll.SetOp(res.ID, res)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	if err := r.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("update results: %w", err)
	}
	return nil
}
