package identity

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Account, error)
}
