// Package kv defines the datastore capability the rest of the server is
// written against: namespaced byte values with get/set/remove, listing,
// multi-key writes and a change feed. Two persistent backends exist, a
// local bolt file and a remote PostgreSQL table; callers never branch on
// which one is active.
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: not found")

// OpKind identifies a write operation.
type OpKind string

const (
	OpSet    OpKind = "set"
	OpRemove OpKind = "remove"
)

// Entry is a single key/value pair inside a namespace.
type Entry struct {
	Key   string
	Value []byte
}

// Op is one write inside an Apply call.
type Op struct {
	Kind      OpKind
	Namespace string
	Key       string
	Value     []byte
}

// Change is delivered to subscribers after a write has been committed.
// Value is nil for removals.
type Change struct {
	Kind      OpKind `json:"kind"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     []byte `json:"value,omitempty"`
}

// Store is the capability interface implemented by every backend.
//
// Writes are last-write-wins. Remove of a missing key is not an error.
// List returns entries ordered by key.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Remove(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) ([]Entry, error)
	Apply(ctx context.Context, ops []Op) error
	// Subscribe streams committed changes for namespace ("" for all)
	// until ctx is cancelled, at which point the channel is closed.
	Subscribe(ctx context.Context, namespace string) (<-chan Change, error)
	Ping(ctx context.Context) error
	Close() error
}

// Runner is implemented by backends that need a background loop to
// deliver changes made by other processes.
type Runner interface {
	Run(ctx context.Context) error
}

// SetOp builds a set operation.
func SetOp(namespace, key string, value []byte) Op {
	return Op{Kind: OpSet, Namespace: namespace, Key: key, Value: value}
}

// RemoveOp builds a remove operation.
func RemoveOp(namespace, key string) Op {
	return Op{Kind: OpRemove, Namespace: namespace, Key: key}
}

const subscriberBuffer = 64

// broker fans committed changes out to in-process subscribers. Slow
// subscribers lose changes rather than block writers.
type broker struct {
	mu   sync.RWMutex
	subs map[chan Change]string
}

func newBroker() *broker {
	return &broker{subs: make(map[chan Change]string)}
}

func (b *broker) subscribe(ctx context.Context, namespace string) <-chan Change {
	ch := make(chan Change, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = namespace
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (b *broker) publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, ns := range b.subs {
		if ns != "" && ns != c.Namespace {
			continue
		}
		select {
		case ch <- c:
		default:
		}
	}
}

func changeFromOp(op Op) Change {
	c := Change{Kind: op.Kind, Namespace: op.Namespace, Key: op.Key}
	if op.Kind == OpSet {
		c.Value = copyBytes(op.Value)
	}
	return c
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
