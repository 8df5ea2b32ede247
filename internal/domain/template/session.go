package template

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultSessionTTL = 12 * time.Hour

var ErrSessionNotFound = errors.New("edit session not found")

// Session is an open edit of one template. Template is a private deep copy;
// nothing reaches the store until Commit.
type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	IsNew     bool      `json:"is_new"`
	Template  *Template `json:"template"`
	OpenedAt  time.Time `json:"opened_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) snapshot() *Session {
	c := *s
	c.Template = s.Template.Clone()
	return &c
}

// Sessions is the in-process registry of open edit sessions. Idle sessions
// expire after ttl and are swept lazily.
type Sessions struct {
	mu   sync.Mutex
	ttl  time.Duration
	byID map[string]*Session
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{ttl: ttl, byID: make(map[string]*Session)}
}

func (r *Sessions) open(t *Template, isNew bool, owner string, now time.Time) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)

	sess := &Session{
		ID:        uuid.New().String(),
		Owner:     owner,
		IsNew:     isNew,
		Template:  t,
		OpenedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.byID[sess.ID] = sess
	return sess.snapshot()
}

func (r *Sessions) get(sid string, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)

	sess, ok := r.byID[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.snapshot(), nil
}

// edit applies fn to the stored session. fn's changes are kept only when
// it returns nil, so a rejected edit leaves the working copy as it was.
func (r *Sessions) edit(sid string, now time.Time, fn func(*Session) error) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)

	sess, ok := r.byID[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	work := sess.snapshot()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.ExpiresAt = now.Add(r.ttl)
	r.byID[sid] = work
	return work.snapshot(), nil
}

func (r *Sessions) close(sid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[sid]
	delete(r.byID, sid)
	return ok
}

// Len reports the number of open sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *Sessions) sweepLocked(now time.Time) {
	for id, s := range r.byID {
		if now.After(s.ExpiresAt) {
			delete(r.byID, id)
		}
	}
}
