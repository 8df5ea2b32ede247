package billing

import (
	"context"

	"github.com/lims/lims/internal/domain/result"
)

type Repository interface {
	// Create writes the invoice and its results in one datastore operation.
	Create(ctx context.Context, inv *Invoice, results []*result.Result) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context) ([]*Invoice, error)
	ListResults(ctx context.Context) ([]*result.Result, error)
	// Purge removes invoices and results in one datastore operation.
	Purge(ctx context.Context, invoiceIDs, resultIDs []string) error
}
