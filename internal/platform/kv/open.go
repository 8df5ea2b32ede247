package kv

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/db"
)

// Backend names accepted by Open.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	BoltPath    string
	DatabaseURL string
	Schema      string
	MaxConns    int32
	MinConns    int32
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendLocal, "":
		return OpenBolt(opts.BoltPath)
	case BackendRemote:
		pool, err := db.NewPool(ctx, opts.DatabaseURL, opts.Schema, opts.MaxConns, opts.MinConns)
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool, logger), nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", opts.Backend)
	}
}
