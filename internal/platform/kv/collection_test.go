package kv

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func TestCollection_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[doc](NewMemory(), "docs")

	require.NoError(t, c.Put(ctx, "b", &doc{ID: "b", Name: "second"}))
	require.NoError(t, c.Put(ctx, "a", &doc{ID: "a", Name: "first"}))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "first", got.Name)

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].ID)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCollection_AllSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "docs", "bad", []byte(`not json`)))
	c := NewCollection[doc](m, "docs")
	require.NoError(t, c.Put(ctx, "ok", &doc{ID: "ok"}))

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = c.Get(ctx, "bad")
	require.Error(t, err)
}
