package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UnknownPatient is used in messages when a patient id no longer resolves.
const UnknownPatient = "a patient"

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.ensureUniqueDocument(ctx, p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = NewPatientID()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByDocumentID(ctx context.Context, documentID string) (*Patient, error) {
	return s.repo.GetByDocumentID(ctx, strings.TrimSpace(documentID))
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	p.normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.ensureUniqueDocument(ctx, p); err != nil {
		return err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	return s.repo.Update(ctx, p)
}

// Delete removes the patient only. Invoices and results keep the dangling
// patient id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns patients ordered by name. A non-empty query keeps patients
// whose name or document id contains it, case-insensitively.
func (s *Service) List(ctx context.Context, query string) ([]*Patient, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query != "" {
		kept := items[:0]
		for _, p := range items {
			if strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(p.DocumentID, query) {
				kept = append(kept, p)
			}
		}
		items = kept
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// DisplayName returns the patient's name, or UnknownPatient.
func (s *Service) DisplayName(ctx context.Context, id string) string {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil || p.Name == "" {
		return UnknownPatient
	}
	return p.Name
}

func (s *Service) ensureUniqueDocument(ctx context.Context, p *Patient) error {
	other, err := s.repo.GetByDocumentID(ctx, p.DocumentID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID != p.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, p.DocumentID)
	}
	return nil
}
