package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/notification"
)

const stockLink = "/inventory"

type Service struct {
	repo     Repository
	notifier notification.Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new item and announces it when it starts out low on
// stock.
func (s *Service) Create(ctx context.Context, item *Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = NewItemID()
	}
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now
	if err := s.repo.Create(ctx, item); err != nil {
		return err
	}
	if item.LowStock() {
		s.notify(ctx, fmt.Sprintf("New item '%s' was added with low stock.", item.Name))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Item, error) {
	return s.repo.List(ctx)
}

// Update replaces an item. A notification is sent only when the update
// moves the item from above its reorder level to at or below it.
func (s *Service) Update(ctx context.Context, item *Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	old, err := s.repo.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	item.CreatedAt = old.CreatedAt
	item.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, item); err != nil {
		return err
	}
	if item.LowStock() && !old.LowStock() {
		s.notify(ctx, fmt.Sprintf("Item '%s' is low on stock.", item.Name))
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) notify(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notification.Event{Message: msg, Link: stockLink}); err != nil {
		s.logger.Error().Err(err).Msg("inventory notification failed")
	}
}
