package template

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
	repo     Repository
	sessions *Sessions
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: NewSessions(DefaultSessionTTL),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, t *Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.ID == "" {
		t.ID = NewTemplateID()
	}
	if t.Fields == nil {
		t.Fields = []Field{}
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, t.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	return s.repo.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, id string) (*Template, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every template ordered by name.
func (s *Service) List(ctx context.Context) ([]*Template, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// Replace overwrites a stored template as a whole. Results recorded
// against the old shape are left untouched.
func (s *Service) Replace(ctx context.Context, t *Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Fields == nil {
		t.Fields = []Field{}
	}
	if err := t.Validate(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	return s.repo.Update(ctx, t)
}

// Delete removes the template only. Services and results that reference it
// keep the dangling id and fall back to free-text behaviour.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Lookup resolves a template id for result entry and rendering. A missing
// or unknown id yields nil without error; only store failures are returned.
func (s *Service) Lookup(ctx context.Context, id string) (*Template, error) {
	if id == "" {
		return nil, nil
	}
	t, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug().Str("template_id", id).Msg("template reference is dangling, treating result as free text")
		return nil, nil
	}
	return t, err
}

// Begin opens an edit session on a deep copy of the template, or on a new
// empty template when id is empty.
func (s *Service) Begin(ctx context.Context, id, actor string) (*Session, error) {
	if id == "" {
		return s.sessions.open(&Template{ID: NewTemplateID(), Fields: []Field{}}, true, actor, s.now()), nil
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.sessions.open(t.Clone(), false, actor, s.now()), nil
}

func (s *Service) Session(sid string) (*Session, error) {
	return s.sessions.get(sid, s.now())
}

func (s *Service) Rename(sid, name string) (*Session, error) {
	return s.sessions.edit(sid, s.now(), func(sess *Session) error {
		sess.Template.Name = strings.TrimSpace(name)
		return nil
	})
}

// AddField appends to the session copy. Missing ids are generated and a
// missing type defaults to number.
func (s *Service) AddField(sid string, parent Path, f Field) (*Session, error) {
	if f.ID == "" {
		f.ID = NewFieldID()
	}
	if f.Type == "" {
		f.Type = TypeNumber
	}
	return s.sessions.edit(sid, s.now(), func(sess *Session) error {
		fields, err := AddField(sess.Template.Fields, parent, f)
		if err != nil {
			return err
		}
		sess.Template.Fields = fields
		return nil
	})
}

func (s *Service) UpdateField(sid string, path Path, patch FieldPatch) (*Session, error) {
	return s.sessions.edit(sid, s.now(), func(sess *Session) error {
		fields, err := UpdateField(sess.Template.Fields, path, patch)
		if err != nil {
			return err
		}
		sess.Template.Fields = fields
		return nil
	})
}

func (s *Service) RemoveField(sid string, path Path) (*Session, error) {
	return s.sessions.edit(sid, s.now(), func(sess *Session) error {
		fields, err := RemoveField(sess.Template.Fields, path)
		if err != nil {
			return err
		}
		sess.Template.Fields = fields
		return nil
	})
}

func (s *Service) MoveField(sid string, path Path, to int) (*Session, error) {
	return s.sessions.edit(sid, s.now(), func(sess *Session) error {
		fields, err := MoveField(sess.Template.Fields, path, to)
		if err != nil {
			return err
		}
		sess.Template.Fields = fields
		return nil
	})
}

// Commit persists the session copy as a whole and closes the session. On
// failure the session stays open so the user can fix and retry.
func (s *Service) Commit(ctx context.Context, sid string) (*Template, error) {
	sess, err := s.sessions.get(sid, s.now())
	if err != nil {
		return nil, err
	}
	t := sess.Template.Clone()
	if sess.IsNew {
		err = s.Create(ctx, t)
	} else {
		err = s.Replace(ctx, t)
	}
	if err != nil {
		return nil, err
	}
	s.sessions.close(sid)
	s.logger.Info().Str("template_id", t.ID).Str("session_id", sid).Str("user_id", sess.Owner).Msg("template committed")
	return t, nil
}

// Discard drops the session without writing anything.
func (s *Service) Discard(sid string) error {
	if !s.sessions.close(sid) {
		return ErrSessionNotFound
	}
	return nil
}
