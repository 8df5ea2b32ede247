package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/notification"
)

type Service struct {
	repo     Repository
	issuer   *auth.TokenIssuer
	notifier notification.Notifier
	logger   zerolog.Logger
	cost     int
	now      func() time.Time
}

func NewService(repo Repository, issuer *auth.TokenIssuer, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		issuer:   issuer,
		notifier: notifier,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Bootstrap creates the administrator when the user store is empty. The
// administrator holds every permission and cannot be deleted.
func (s *Service) Bootstrap(ctx context.Context, id, password string) (bool, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	admin := User{
		ID:           id,
		Name:         "Administrator",
		Permissions:  auth.AllPermissions(),
		Professional: true,
	}
	if err := s.create(ctx, admin, password, false); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info().Str("user_id", id).Msg("bootstrap administrator created")
	return true, nil
}

// Create registers a deletable user.
func (s *Service) Create(ctx context.Context, u User, password string) (*User, error) {
	if err := s.create(ctx, u, password, true); err != nil {
		return nil, err
	}
	created, err := s.Get(ctx, strings.TrimSpace(u.ID))
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Event{
		Message: fmt.Sprintf("New user registered: %s.", created.Name),
		Link:    "/users",
	})
	return created, nil
}

func (s *Service) create(ctx context.Context, u User, password string, deletable bool) error {
	u.normalize()
	if err := u.Validate(); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, u.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, u.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Deletable = deletable
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	return s.repo.Create(ctx, &Account{User: u, PasswordHash: hash})
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &a.User, nil
}

// List returns users ordered by name.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]*User, len(accounts))
	for i, a := range accounts {
		users[i] = &a.User
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	return users, nil
}

// Update replaces a user's profile. An empty password keeps the current
// one. Deletable is fixed at creation.
func (s *Service) Update(ctx context.Context, u User, password string) (*User, error) {
	u.normalize()
	if err := u.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	hash := existing.PasswordHash
	if password != "" {
		if err := validatePassword(password); err != nil {
			return nil, err
		}
		if hash, err = bcrypt.GenerateFromPassword([]byte(password), s.cost); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	u.Deletable = existing.Deletable
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, &Account{User: u, PasswordHash: hash}); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Deletable {
		return fmt.Errorf("%w: %s", ErrNotDeletable, id)
	}
	return s.repo.Delete(ctx, id)
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Login checks the credentials and issues a token carrying the user's
// permissions. Unknown users and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, id, password string) (*LoginResult, error) {
	a, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.issuer == nil {
		return nil, errors.New("token issuing is not configured")
	}
	token, exp, err := s.issuer.Issue(a.ID, a.Name, a.Permissions)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: &a.User}, nil
}

// Signature returns the block printed under results the user reported.
// ok is false for unknown users.
func (s *Service) Signature(ctx context.Context, id string) (SignatureBlock, bool) {
	if id == "" {
		return SignatureBlock{}, false
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return SignatureBlock{}, false
	}
	return SignatureBlock{
		Name:         a.Name,
		Title:        a.ProfessionalTitle,
		Registration: a.ProfessionalRegistration,
		Signature:    a.Signature,
	}, true
}

func (s *Service) notify(ctx context.Context, ev notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Error().Err(err).Msg("user notification failed")
	}
}
