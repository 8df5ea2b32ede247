package catalog

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, s *LabService) error
	GetByID(ctx context.Context, id string) (*LabService, error)
	Update(ctx context.Context, s *LabService) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*LabService, error)
}
