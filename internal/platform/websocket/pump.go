package websocket

import (
	"context"
	"encoding/json"

	"github.com/lims/lims/internal/platform/kv"
)

// Pump forwards every datastore change to the topic named after its
// namespace until ctx is cancelled. Removals carry no data.
func Pump(ctx context.Context, store kv.Store, hub *Hub) error {
	changes, err := store.Subscribe(ctx, "")
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			ev := Event{Type: "change." + string(ch.Kind), Topic: ch.Namespace, Key: ch.Key}
			if ch.Kind == kv.OpSet && json.Valid(ch.Value) {
				ev.Data = json.RawMessage(ch.Value)
			}
			hub.Broadcast(ev)
		}
	}
}
