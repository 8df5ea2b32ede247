package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is a process-local Store used by tests and by DATA_BACKEND=memory.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	broker *broker

	// FailWrites makes every write return an error. Tests use it to
	// exercise store failure paths.
	FailWrites bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string]map[string][]byte),
		broker: newBroker(),
	}
}

func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(v), nil
}

func (m *Memory) Set(ctx context.Context, namespace, key string, value []byte) error {
	return m.Apply(ctx, []Op{SetOp(namespace, key, value)})
}

func (m *Memory) Remove(ctx context.Context, namespace, key string) error {
	return m.Apply(ctx, []Op{RemoveOp(namespace, key)})
}

func (m *Memory) List(_ context.Context, namespace string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.data[namespace]
	entries := make([]Entry, 0, len(bucket))
	for k, v := range bucket {
		entries = append(entries, Entry{Key: k, Value: copyBytes(v)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *Memory) Apply(_ context.Context, ops []Op) error {
	if m.FailWrites {
		return fmt.Errorf("memory store: writes disabled")
	}
	for _, op := range ops {
		if op.Kind != OpSet && op.Kind != OpRemove {
			return fmt.Errorf("memory store: unknown op %q", op.Kind)
		}
	}

	m.mu.Lock()
	for _, op := range ops {
		if op.Kind == OpRemove {
			delete(m.data[op.Namespace], op.Key)
			continue
		}
		bucket, ok := m.data[op.Namespace]
		if !ok {
			bucket = make(map[string][]byte)
			m.data[op.Namespace] = bucket
		}
		bucket[op.Key] = copyBytes(op.Value)
	}
	m.mu.Unlock()

	for _, op := range ops {
		m.broker.publish(changeFromOp(op))
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, namespace string) (<-chan Change, error) {
	return m.broker.subscribe(ctx, namespace), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
