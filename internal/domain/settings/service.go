package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/lims/lims/internal/platform/kv"
	"github.com/lims/lims/internal/platform/notification"
)

type Service struct {
	company  *kv.Collection[CompanyInfo]
	secrets  *kv.Collection[passwordHash]
	notifier notification.Notifier
	logger   zerolog.Logger
	cost     int
	now      func() time.Time
}

func NewService(store kv.Store, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		company:  kv.NewCollection[CompanyInfo](store, Namespace),
		secrets:  kv.NewCollection[passwordHash](store, Namespace),
		notifier: notifier,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Company returns the saved company block, or DefaultCompany when none was
// saved yet.
func (s *Service) Company(ctx context.Context) (*CompanyInfo, error) {
	info, err := s.company.Get(ctx, companyKey)
	if errors.Is(err, kv.ErrNotFound) {
		def := DefaultCompany()
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get company info: %w", err)
	}
	return info, nil
}

func (s *Service) UpdateCompany(ctx context.Context, info *CompanyInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	info.UpdatedAt = s.now()
	if err := s.company.Put(ctx, companyKey, info); err != nil {
		return fmt.Errorf("save company info: %w", err)
	}
	s.notify(ctx, notification.Event{Message: "Company information was updated.", Link: "/settings"})
	return nil
}

// SetDeletionPassword replaces the password required by bulk purges.
func (s *Service) SetDeletionPassword(ctx context.Context, password string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash deletion password: %w", err)
	}
	if err := s.secrets.Put(ctx, deletionPasswordKey, &passwordHash{Hash: hash, UpdatedAt: s.now()}); err != nil {
		return fmt.Errorf("save deletion password: %w", err)
	}
	return nil
}

// EnsureDeletionPassword sets password only when none is stored yet and
// reports whether it did.
func (s *Service) EnsureDeletionPassword(ctx context.Context, password string) (bool, error) {
	_, err := s.secrets.Get(ctx, deletionPasswordKey)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return false, fmt.Errorf("get deletion password: %w", err)
	}
	if err := s.SetDeletionPassword(ctx, password); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyDeletionPassword returns nil when password matches.
func (s *Service) VerifyDeletionPassword(ctx context.Context, password string) error {
	stored, err := s.secrets.Get(ctx, deletionPasswordKey)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrPasswordNotSet
	}
	if err != nil {
		return fmt.Errorf("get deletion password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(stored.Hash, []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

func (s *Service) notify(ctx context.Context, ev notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Error().Err(err).Msg("settings notification failed")
	}
}
