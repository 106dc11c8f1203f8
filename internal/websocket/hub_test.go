package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/auth"
	"github.com/dennisdiepolder/qmconsole/internal/config"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type userFilter struct{}

// FilterSnapshot hides queues from everybody except alice
func (userFilter) FilterSnapshot(_ context.Context, username string, snap types.LiveSnapshot) types.LiveSnapshot {
	if username != "alice" {
		snap.Queues = []types.QueueRecord{}
	}
	return snap
}

func startHub(t *testing.T, filter SnapshotFilter) *Hub {
	t.Helper()
	hub := NewHub(zerolog.New(&bytes.Buffer{}), filter)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) types.LiveSnapshot {
	t.Helper()
	select {
	case msg := <-c.send:
		var snap types.LiveSnapshot
		if err := json.Unmarshal(msg, &snap); err != nil {
			t.Fatalf("invalid snapshot: %v", err)
		}
		return snap
	case <-time.After(time.Second):
		t.Fatalf("client %s did not receive a snapshot", c.id)
	}
	return types.LiveSnapshot{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}), nil)

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil || hub.snapshots == nil {
		t.Error("expected broadcast channels to be initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("expected register channels to be initialized")
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := startHub(t, nil)

	client := &Client{id: "test-client", hub: hub, send: make(chan []byte, 1)}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}

func TestHubBroadcastRaw(t *testing.T) {
	hub := startHub(t, nil)

	client1 := &Client{id: "client1", hub: hub, send: make(chan []byte, 10)}
	client2 := &Client{id: "client2", hub: hub, send: make(chan []byte, 10)}
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	message := []byte("test broadcast")
	hub.Broadcast(message)

	for _, c := range []*Client{client1, client2} {
		select {
		case msg := <-c.send:
			if string(msg) != string(message) {
				t.Errorf("%s expected %s, got %s", c.id, message, msg)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("%s did not receive message", c.id)
		}
	}
}

func TestHubFiltersSnapshotsPerUser(t *testing.T) {
	hub := startHub(t, userFilter{})

	alice := &Client{id: "a", username: "alice", hub: hub, send: make(chan []byte, 10)}
	bob := &Client{id: "b", username: "bob", hub: hub, send: make(chan []byte, 10)}
	hub.register <- alice
	hub.register <- bob

	hub.BroadcastSnapshot(types.LiveSnapshot{
		Type:   "snapshot",
		Queues: []types.QueueRecord{{Queue: "100"}},
	})

	if got := receive(t, alice); len(got.Queues) != 1 {
		t.Errorf("alice expected 1 queue, got %d", len(got.Queues))
	}
	if got := receive(t, bob); len(got.Queues) != 0 {
		t.Errorf("bob expected no queues, got %d", len(got.Queues))
	}
}

func TestHubSendsLastSnapshotOnConnect(t *testing.T) {
	hub := startHub(t, nil)

	hub.BroadcastSnapshot(types.LiveSnapshot{Type: "snapshot", Agents: []types.AgentStat{{Agent: "7"}}})
	time.Sleep(10 * time.Millisecond)

	late := &Client{id: "late", hub: hub, send: make(chan []byte, 1)}
	hub.register <- late

	if got := receive(t, late); len(got.Agents) != 1 {
		t.Errorf("expected last snapshot on connect, got %+v", got)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t, nil)

	slow := &Client{id: "slow", hub: hub, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast([]byte("x"))
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected slow client removed, got %d clients", hub.ClientCount())
	}
}

func TestHandlerEndToEnd(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	messages := make(chan string, 1)
	hub.OnMessage(func(username string, msg types.ClientMessage) {
		messages <- username + ":" + msg.Type + ":" + msg.Panel
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	cfg := &config.Config{
		AllowedOrigins: []string{"http://console.local"},
		PongWait:       time.Second,
		PingPeriod:     900 * time.Millisecond,
		WriteWait:      time.Second,
		MaxMessageSize: 512,
	}
	verifier := auth.NewVerifier(auth.Config{SkipAuth: true}, zerolog.Nop())
	srv := httptest.NewServer(verifier.Middleware(NewHandler(hub, cfg, zerolog.Nop())))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": {"http://console.local"}}
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(types.ClientMessage{Type: types.ClientRefresh, Panel: types.PanelQueues}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case got := <-messages:
		if got != "dev:refresh:queues" {
			t.Errorf("unexpected client message %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("client message not delivered")
	}

	hub.BroadcastSnapshot(types.LiveSnapshot{Type: "snapshot", Queues: []types.QueueRecord{{Queue: "100"}}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var snap types.LiveSnapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(snap.Queues) != 1 || snap.Queues[0].Queue != "100" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestHandlerRejectsUnknownOrigin(t *testing.T) {
	hub := startHub(t, nil)
	cfg := &config.Config{AllowedOrigins: []string{"http://console.local"}}
	srv := httptest.NewServer(NewHandler(hub, cfg, zerolog.Nop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := gorilla.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %+v", resp)
	}
}

// slowFilter stands in for preference storage that takes delay to answer
type slowFilter struct {
	delay time.Duration
}

func (f slowFilter) FilterSnapshot(ctx context.Context, _ string, snap types.LiveSnapshot) types.LiveSnapshot {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
	}
	return snap
}

func TestHubSlowFilterDoesNotBlockRegistration(t *testing.T) {
	hub := startHub(t, slowFilter{delay: 300 * time.Millisecond})

	clients := make([]*Client, 4)
	for i := range clients {
		clients[i] = &Client{id: string(rune('a' + i)), username: string(rune('a' + i)), hub: hub, send: make(chan []byte, 10)}
		hub.register <- clients[i]
	}
	hub.BroadcastSnapshot(types.LiveSnapshot{Type: "snapshot"})
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	late := &Client{id: "late", username: "late", hub: hub, send: make(chan []byte, 10)}
	hub.register <- late
	if n := hub.ClientCount(); n != 5 {
		t.Errorf("expected 5 clients, got %d", n)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("registration blocked for %v while snapshots were filtered", elapsed)
	}

	for _, c := range append(clients, late) {
		receive(t, c)
	}
}

func TestHubBoundsFilterTime(t *testing.T) {
	hub := NewHub(zerolog.Nop(), slowFilter{delay: time.Hour})
	hub.filterTimeout = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{id: "c", username: "carol", hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	hub.BroadcastSnapshot(types.LiveSnapshot{Type: "snapshot", Queues: []types.QueueRecord{{Queue: "100"}}})

	if got := receive(t, client); len(got.Queues) != 1 {
		t.Errorf("expected unfiltered snapshot after timeout, got %+v", got)
	}
}

func TestHubStoppedDoesNotBlockSenders(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	registered := &Client{id: "r", hub: hub, send: make(chan []byte, 1)}
	hub.register <- registered
	cancel()

	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		hub.leave(registered)
		hub.BroadcastSnapshot(types.LiveSnapshot{Type: "snapshot"})
		hub.Broadcast([]byte("x"))

		late := &Client{id: "late", hub: hub, send: make(chan []byte, 1)}
		hub.join(late)
		if _, ok := <-late.send; ok {
			t.Error("expected send channel of a client joining a stopped hub to be closed")
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("senders blocked after the hub stopped")
	}
	if _, ok := <-registered.send; ok {
		t.Error("expected registered client to be closed on stop")
	}
}
