package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lims/lims/internal/platform/kv"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	return p.err
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, Event) error {
	f.calls++
	return errors.New("feed unavailable")
}

func newTestFeed(t *testing.T, limit int) (*Feed, *kv.Memory, *recordingPublisher) {
	t.Helper()
	store := kv.NewMemory()
	pub := &recordingPublisher{}
	feed := NewFeed(store, limit, pub, zerolog.Nop())
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	feed.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return feed, store, pub
}

func TestFeed_NotifyNewestFirst(t *testing.T) {
	ctx := context.Background()
	feed, _, pub := newTestFeed(t, 10)

	require.NoError(t, feed.Notify(ctx, Event{Message: "first"}))
	require.NoError(t, feed.Notify(ctx, Event{Message: "second", Link: "/invoice/print/INV-1"}))

	entries, err := feed.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "second", entries[0].Message)
	require.Equal(t, "/invoice/print/INV-1", entries[0].Link)
	require.False(t, entries[0].Read)
	require.Equal(t, []string{Topic, Topic}, pub.topics)
	require.Equal(t, entries[0].ID, pub.keys[1])
}

func TestFeed_CapsAtLimit(t *testing.T) {
	ctx := context.Background()
	feed, store, _ := newTestFeed(t, 3)

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, feed.Notify(ctx, Event{Message: msg}))
	}

	entries, err := feed.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "e", entries[0].Message)
	require.Equal(t, "c", entries[2].Message)

	raw, err := store.List(ctx, Namespace)
	require.NoError(t, err)
	require.Len(t, raw, 3)
}

func TestFeed_DefaultLimit(t *testing.T) {
	feed := NewFeed(kv.NewMemory(), 0, nil, zerolog.Nop())
	require.Equal(t, DefaultLimit, feed.limit)
}

func TestFeed_RejectsEmptyMessage(t *testing.T) {
	feed, _, _ := newTestFeed(t, 5)
	require.Error(t, feed.Notify(context.Background(), Event{}))
}

func TestFeed_PublishFailureDoesNotFailNotify(t *testing.T) {
	feed, _, pub := newTestFeed(t, 5)
	pub.err = errors.New("hub closed")
	require.NoError(t, feed.Notify(context.Background(), Event{Message: "x"}))
}

func TestFeed_StoreFailure(t *testing.T) {
	feed, store, pub := newTestFeed(t, 5)
	store.FailWrites = true
	require.Error(t, feed.Notify(context.Background(), Event{Message: "x"}))
	require.Empty(t, pub.topics)
}

func TestFeed_MarkAllReadAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	feed, _, _ := newTestFeed(t, 10)
	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, feed.Notify(ctx, Event{Message: msg}))
	}

	unread, err := feed.UnreadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, unread)

	n, err := feed.MarkAllRead(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = feed.MarkAllRead(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	unread, err = feed.UnreadCount(ctx)
	require.NoError(t, err)
	require.Zero(t, unread)

	n, err = feed.DeleteAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	entries, err := feed.List(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSafe_SwallowsErrors(t *testing.T) {
	inner := &failingNotifier{}
	require.NoError(t, Safe(inner, zerolog.Nop()).Notify(context.Background(), Event{Message: "x"}))
	require.Equal(t, 1, inner.calls)
	require.NoError(t, Safe(nil, zerolog.Nop()).Notify(context.Background(), Event{Message: "x"}))
}

func TestHandler_ListAndMarkRead(t *testing.T) {
	ctx := context.Background()
	feed, _, _ := newTestFeed(t, 10)
	require.NoError(t, feed.Notify(ctx, Event{Message: "a"}))
	require.NoError(t, feed.Notify(ctx, Event{Message: "b"}))
	h := NewHandler(feed)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/notifications?limit=1", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.List(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data    []Entry `json:"data"`
		Total   int     `json:"total"`
		HasMore bool    `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)
	require.True(t, body.HasMore)
	require.Len(t, body.Data, 1)
	require.Equal(t, "b", body.Data[0].Message)

	req = httptest.NewRequest(http.MethodPost, "/notifications/read", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.MarkAllRead(e.NewContext(req, rec)))
	require.JSONEq(t, `{"updated":2}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/notifications", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.DeleteAll(e.NewContext(req, rec)))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
