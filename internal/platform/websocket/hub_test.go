package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/kv"
)

func newTestHub() *Hub { return NewHub(zerolog.Nop()) }

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("invalid event JSON: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	client := NewClient("u1", "results")

	hub.Register(client)
	if hub.ClientCount() != 1 || hub.TopicCount("results") != 1 {
		t.Fatalf("expected 1 client on results, got %d/%d", hub.ClientCount(), hub.TopicCount("results"))
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount("results") != 0 {
		t.Fatalf("expected hub to be empty")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed")
	}
}

func TestHub_BroadcastToTopic(t *testing.T) {
	hub := newTestHub()
	subscriber := NewClient("u1", "notifications")
	other := NewClient("u2", "invoices")
	hub.Register(subscriber)
	hub.Register(other)

	hub.Broadcast(Event{Type: "notification.created", Topic: "notifications", Key: "n1"})

	ev := receive(t, subscriber)
	if ev.Key != "n1" || ev.Timestamp.IsZero() {
		t.Errorf("unexpected event %+v", ev)
	}
	select {
	case <-other.Send:
		t.Fatal("non-subscriber received an event")
	default:
	}
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	client := &Client{ID: "slow", Topics: []string{"results"}, Send: make(chan []byte, 1)}
	hub.Register(client)

	hub.Broadcast(Event{Topic: "results", Key: "a"})
	hub.Broadcast(Event{Topic: "results", Key: "b"})

	if ev := receive(t, client); ev.Key != "a" {
		t.Errorf("expected first event to be kept, got %s", ev.Key)
	}
	if len(client.Send) != 0 {
		t.Error("expected second event to be dropped")
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := NewClient("u1")
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"results", "invoices", "results"}})
	if len(client.Topics) != 2 {
		t.Fatalf("expected duplicate topic to be ignored, got %v", client.Topics)
	}
	if hub.TopicCount("results") != 1 || hub.TopicCount("invoices") != 1 {
		t.Fatal("expected subscriptions on both topics")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"results"}})
	if hub.TopicCount("results") != 0 {
		t.Errorf("expected results to be empty")
	}
	if len(client.Topics) != 1 || client.Topics[0] != "invoices" {
		t.Errorf("unexpected topics %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "bogus", Topics: []string{"x"}})
	if hub.TopicCount("x") != 0 {
		t.Error("unknown action must be ignored")
	}
}

func TestHub_SubscribeUnregisteredClient(t *testing.T) {
	hub := newTestHub()
	hub.Subscribe(NewClient("u1"), []string{"results"})
	if hub.TopicCount("results") != 0 {
		t.Fatal("unregistered client must not be subscribed")
	}
}

func TestHub_Publish(t *testing.T) {
	hub := newTestHub()
	client := NewClient("u1", "notifications")
	hub.Register(client)

	payload := map[string]string{"message": "ready"}
	if err := hub.Publish(context.Background(), "notifications", "notification.created", "n1", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	ev := receive(t, client)
	var got map[string]string
	if err := json.Unmarshal(ev.Data, &got); err != nil || got["message"] != "ready" {
		t.Fatalf("unexpected data %s (%v)", ev.Data, err)
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("u", "results")
			hub.Register(c)
			hub.Broadcast(Event{Topic: "results"})
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestPump_ForwardsStoreChanges(t *testing.T) {
	store := kv.NewMemory()
	hub := newTestHub()
	client := NewClient("u1", "results")
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Pump(ctx, store, hub) }()

	var ev Event
	for i := 0; i < 50; i++ {
		if err := store.Set(ctx, "results", "r1", []byte(`{"status":"pending"}`)); err != nil {
			t.Fatalf("Set: %v", err)
		}
		select {
		case data := <-client.Send:
			json.Unmarshal(data, &ev)
		case <-time.After(20 * time.Millisecond):
			continue
		}
		break
	}
	if ev.Type != "change.set" || ev.Key != "r1" || !strings.Contains(string(ev.Data), "pending") {
		t.Fatalf("unexpected event %+v", ev)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Pump returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pump did not stop on cancel")
	}
}

func TestHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHandler(newTestHub(), nil, nil).HandleConnect(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for plain HTTP request, got %d", rec.Code)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	e := echo.New()
	NewHandler(newTestHub(), []string{"http://lab.test"}, nil).RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.test"}}
	if _, _, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatal("expected dial from foreign origin to fail")
	}
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	NewHandler(hub, []string{"*"}, func(echo.Context) string { return "u1" }).RegisterRoutes(e.Group(""))

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topic=invoices"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	time.Sleep(50 * time.Millisecond)
	if hub.TopicCount("invoices") != 1 {
		t.Fatalf("expected connect-time subscription, got %d", hub.TopicCount("invoices"))
	}

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{"notifications"}}); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if hub.TopicCount("notifications") != 1 {
		t.Fatalf("expected 1 subscriber on notifications, got %d", hub.TopicCount("notifications"))
	}

	hub.Broadcast(Event{Type: "notification.created", Topic: "notifications", Key: "n1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "notification.created" || received.Key != "n1" {
		t.Fatalf("unexpected event %+v", received)
	}
}
