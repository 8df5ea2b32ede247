// Package notification keeps the shared notification feed: a capped,
// newest-first list of short messages with an optional in-app link,
// persisted in the datastore and pushed to websocket subscribers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/kv"
)

const (
	Namespace    = "notifications"
	Topic        = "notifications"
	DefaultLimit = 50
)

// Event is what producers raise. Link is an in-app path such as
// "/invoice/print/INV-1".
type Event struct {
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// Entry is a stored feed item.
type Entry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Notifier is the sink domain services raise events on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher pushes an entry to live clients. *websocket.Hub satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error
}

// Feed is the persisted notification list.
type Feed struct {
	mu     sync.Mutex
	coll   *kv.Collection[Entry]
	store  kv.Store
	limit  int
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewFeed caps the feed at limit entries (DefaultLimit when limit <= 0).
// pub may be nil.
func NewFeed(store kv.Store, limit int, pub Publisher, logger zerolog.Logger) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feed{
		coll:   kv.NewCollection[Entry](store, Namespace),
		store:  store,
		limit:  limit,
		pub:    pub,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// entryID sorts lexically in creation order.
func entryID(ts time.Time) string {
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), uuid.New().String()[:8])
}

// Notify appends an entry and drops the oldest ones beyond the cap, in a
// single datastore write.
func (f *Feed) Notify(ctx context.Context, ev Event) error {
	if ev.Message == "" {
		return errors.New("notification message is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	entry := &Entry{ID: entryID(now), Message: ev.Message, Link: ev.Link, Timestamp: now}

	existing, err := f.List(ctx)
	if err != nil {
		return fmt.Errorf("load notification feed: %w", err)
	}

	op, err := f.coll.SetOp(entry.ID, entry)
	if err != nil {
		return err
	}
	ops := []kv.Op{op}
	// existing is newest first; keep limit-1 of them next to the new entry.
	for i := f.limit - 1; i < len(existing); i++ {
		ops = append(ops, f.coll.RemoveOp(existing[i].ID))
	}
	if err := f.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if f.pub != nil {
		if err := f.pub.Publish(ctx, Topic, "notification.created", entry.ID, entry); err != nil {
			f.logger.Warn().Err(err).Str("notification_id", entry.ID).Msg("publish notification")
		}
	}
	return nil
}

// List returns the feed newest first.
func (f *Feed) List(ctx context.Context) ([]*Entry, error) {
	entries, err := f.coll.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// UnreadCount counts entries not yet marked read.
func (f *Feed) UnreadCount(ctx context.Context) (int, error) {
	entries, err := f.coll.All(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.Read {
			n++
		}
	}
	return n, nil
}

// MarkAllRead flags every unread entry as read and returns how many changed.
func (f *Feed) MarkAllRead(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.coll.All(ctx)
	if err != nil {
		return 0, err
	}
	var ops []kv.Op
	for _, e := range entries {
		if e.Read {
			continue
		}
		e.Read = true
		op, err := f.coll.SetOp(e.ID, e)
		if err != nil {
			return 0, err
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := f.store.Apply(ctx, ops); err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return len(ops), nil
}

// DeleteAll empties the feed and returns how many entries were removed.
func (f *Feed) DeleteAll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.store.List(ctx, Namespace)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	ops := make([]kv.Op, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, kv.RemoveOp(Namespace, e.Key))
	}
	if err := f.store.Apply(ctx, ops); err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return len(ops), nil
}

// Safe wraps n so that delivery failures are logged instead of returned.
// Use it where a notification must never fail the triggering write.
func Safe(n Notifier, logger zerolog.Logger) Notifier {
	return safeNotifier{n: n, logger: logger}
}

type safeNotifier struct {
	n      Notifier
	logger zerolog.Logger
}

func (s safeNotifier) Notify(ctx context.Context, ev Event) error {
	if s.n == nil {
		return nil
	}
	if err := s.n.Notify(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("message", ev.Message).Msg("notification delivery failed")
	}
	return nil
}
