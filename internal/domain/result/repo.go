package result

import (
	"context"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Result, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Result, error)
	List(ctx context.Context) ([]*Result, error)
	Update(ctx context.Context, r *Result) error
	// UpdateMany writes all results in one datastore operation.
	UpdateMany(ctx context.Context, rs []*Result) error
}
