package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, svc *LabService) error {
	svc.normalize()
	if err := svc.Validate(); err != nil {
		return err
	}
	if svc.ID == "" {
		svc.ID = NewServiceID()
	} else if _, err := s.repo.GetByID(ctx, svc.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, svc.ID)
	}
	now := s.now()
	svc.CreatedAt, svc.UpdatedAt = now, now
	return s.repo.Create(ctx, svc)
}

func (s *Service) Get(ctx context.Context, id string) (*LabService, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns services ordered by name.
func (s *Service) List(ctx context.Context) ([]*LabService, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

func (s *Service) Update(ctx context.Context, svc *LabService) error {
	svc.normalize()
	if err := svc.Validate(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, svc.ID)
	if err != nil {
		return err
	}
	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = s.now()
	return s.repo.Update(ctx, svc)
}

// Delete removes the service. Invoices keep their own copy of the name and
// price, so nothing else is touched.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// TemplateIDFor resolves the template bound to a service. Unknown services
// and services without a template report false.
func (s *Service) TemplateIDFor(ctx context.Context, serviceID string) (string, bool) {
	svc, err := s.repo.GetByID(ctx, serviceID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("service_id", serviceID).Msg("template lookup failed")
		}
		return "", false
	}
	return svc.TemplateID, svc.TemplateID != ""
}
