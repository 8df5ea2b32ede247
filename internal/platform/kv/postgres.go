package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// changeChannel is the LISTEN/NOTIFY channel used to fan out writes to
// every server attached to the same database.
const changeChannel = "kv_changes"

// Postgres keeps all namespaces in the kv_entries table (see
// migrations/001_kv_entries.sql). Changes reach subscribers through
// LISTEN/NOTIFY, so writes made by other servers are observed too; Run
// must be running for Subscribe to deliver anything.
type Postgres struct {
	pool   *pgxpool.Pool
	broker *broker
	logger zerolog.Logger
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, broker: newBroker(), logger: logger}
}

type notifyPayload struct {
	Kind      OpKind `json:"kind"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

func (s *Postgres) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, namespace, key string, value []byte) error {
	return s.Apply(ctx, []Op{SetOp(namespace, key, value)})
}

func (s *Postgres) Remove(ctx context.Context, namespace, key string) error {
	return s.Apply(ctx, []Op{RemoveOp(namespace, key)})
}

func (s *Postgres) List(ctx context.Context, namespace string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM kv_entries WHERE namespace = $1 ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan %s entry: %w", namespace, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", namespace, err)
	}
	return entries, nil
}

func (s *Postgres) Apply(ctx context.Context, ops []Op) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			_, err = tx.Exec(ctx, `
				INSERT INTO kv_entries (namespace, key, value, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				op.Namespace, op.Key, op.Value)
		case OpRemove:
			_, err = tx.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`,
				op.Namespace, op.Key)
		default:
			return fmt.Errorf("postgres store: unknown op %q", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Namespace, op.Key, err)
		}

		payload, err := json.Marshal(notifyPayload{Kind: op.Kind, Namespace: op.Namespace, Key: op.Key})
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, string(payload)); err != nil {
			return fmt.Errorf("notify change: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) Subscribe(ctx context.Context, namespace string) (<-chan Change, error) {
	return s.broker.subscribe(ctx, namespace), nil
}

// Run listens for change notifications until ctx is cancelled.
func (s *Postgres) Run(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", changeChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		var p notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			s.logger.Warn().Err(err).Str("payload", n.Payload).Msg("malformed change notification")
			continue
		}

		c := Change{Kind: p.Kind, Namespace: p.Namespace, Key: p.Key}
		if p.Kind == OpSet {
			v, err := s.Get(ctx, p.Namespace, p.Key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				s.logger.Warn().Err(err).Str("namespace", p.Namespace).Str("key", p.Key).Msg("load changed entry")
				continue
			}
			c.Value = v
		}
		s.broker.publish(c)
	}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
