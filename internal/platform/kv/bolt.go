package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

// Bolt stores each namespace in its own bucket of a single bolt file.
type Bolt struct {
	DB     *bolt.DB
	broker *broker
}

// OpenBolt opens (or creates) the datastore file at path. Only one process
// may hold the file at a time.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}
	return &Bolt{DB: db, broker: newBroker()}, nil
}

// Close the database and release the file lock.
func (s *Bolt) Close() error {
	return s.DB.Close()
}

func (s *Bolt) Get(_ context.Context, namespace, key string) ([]byte, error) {
	var out []byte
	err := s.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return ErrNotFound
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bolt values are only valid for the life of the transaction
		out = copyBytes(v)
		return nil
	})
	return out, err
}

func (s *Bolt) Set(ctx context.Context, namespace, key string, value []byte) error {
	return s.Apply(ctx, []Op{SetOp(namespace, key, value)})
}

func (s *Bolt) Remove(ctx context.Context, namespace, key string) error {
	return s.Apply(ctx, []Op{RemoveOp(namespace, key)})
}

func (s *Bolt) List(_ context.Context, namespace string) ([]Entry, error) {
	var entries []Entry
	err := s.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			entries = append(entries, Entry{Key: string(k), Value: copyBytes(v)})
			return nil
		})
	})
	return entries, err
}

func (s *Bolt) Apply(_ context.Context, ops []Op) error {
	err := s.DB.Update(func(tx *bolt.Tx) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				bucket, err := tx.CreateBucketIfNotExists([]byte(op.Namespace))
				if err != nil {
					return fmt.Errorf("ensure bucket %s: %w", op.Namespace, err)
				}
				if err := bucket.Put([]byte(op.Key), op.Value); err != nil {
					return fmt.Errorf("put %s/%s: %w", op.Namespace, op.Key, err)
				}
			case OpRemove:
				bucket := tx.Bucket([]byte(op.Namespace))
				if bucket == nil {
					continue
				}
				if err := bucket.Delete([]byte(op.Key)); err != nil {
					return fmt.Errorf("delete %s/%s: %w", op.Namespace, op.Key, err)
				}
			default:
				return fmt.Errorf("bolt store: unknown op %q", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, op := range ops {
		s.broker.publish(changeFromOp(op))
	}
	return nil
}

func (s *Bolt) Subscribe(ctx context.Context, namespace string) (<-chan Change, error) {
	return s.broker.subscribe(ctx, namespace), nil
}

func (s *Bolt) Ping(context.Context) error {
	return s.DB.View(func(*bolt.Tx) error { return nil })
}
