package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/platform/kv"
)

type kvRepo struct {
	store    kv.Store
	invoices *kv.Collection[Invoice]
	results  *kv.Collection[result.Result]
}

func NewKVRepo(store kv.Store) Repository {
	return &kvRepo{
		store:    store,
		invoices: kv.NewCollection[Invoice](store, Namespace),
		results:  result.NewCollection(store),
	}
}

func (r *kvRepo) Create(ctx context.Context, inv *Invoice, results []*result.Result) error {
	ops := make([]kv.Op, 0, len(results)+1)
	op, err := r.invoices.SetOp(inv.ID, inv)
	if err != nil {
		return err
	}
	ops = append(ops, op)
	for _, res := range results {
		op, err := r.results.SetOp(res.ID, res)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	if err := r.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (r *kvRepo) GetByID(ctx context.Context, id string) (*Invoice, error) {
	inv, err := r.invoices.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *kvRepo) Update(ctx context.Context, inv *Invoice) error {
	if err := r.invoices.Put(ctx, inv.ID, inv); err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

func (r *kvRepo) List(ctx context.Context) ([]*Invoice, error) {
	out, err := r.invoices.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

func (r *kvRepo) ListResults(ctx context.Context) ([]*result.Result, error) {
	out, err := r.results.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

func (r *kvRepo) Purge(ctx context.Context, invoiceIDs, resultIDs []string) error {
	ops := make([]kv.Op, 0, len(invoiceIDs)+len(resultIDs))
	for _, id := range invoiceIDs {
		ops = append(ops, r.invoices.RemoveOp(id))
	}
	for _, id := range resultIDs {
		ops = append(ops, r.results.RemoveOp(id))
	}
	if len(ops) == 0 {
		return nil
	}
	if err := r.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("purge records: %w", err)
	}
	return nil
}
