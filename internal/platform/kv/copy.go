package kv

import (
	"context"
	"fmt"
)

// Copy writes every entry of the given namespaces from src into dst,
// overwriting keys that already exist in dst. It returns the number of
// entries copied.
func Copy(ctx context.Context, src, dst Store, namespaces []string) (int, error) {
	total := 0
	for _, ns := range namespaces {
		entries, err := src.List(ctx, ns)
		if err != nil {
			return total, fmt.Errorf("list %s: %w", ns, err)
		}
		if len(entries) == 0 {
			continue
		}
		ops := make([]Op, 0, len(entries))
		for _, e := range entries {
			ops = append(ops, SetOp(ns, e.Key, e.Value))
		}
		if err := dst.Apply(ctx, ops); err != nil {
			return total, fmt.Errorf("write %s: %w", ns, err)
		}
		total += len(entries)
	}
	return total, nil
}
