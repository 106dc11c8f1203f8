package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/metrics"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

// filterTimeout bounds the preference lookups made to filter one snapshot for
// one user
const filterTimeout = 2 * time.Second

// SnapshotFilter narrows a snapshot to what one user's console shows
type SnapshotFilter interface {
	FilterSnapshot(ctx context.Context, username string, snap types.LiveSnapshot) types.LiveSnapshot
}

// MessageHandler receives messages sent by console clients
type MessageHandler func(username string, msg types.ClientMessage)

// Hub maintains the set of active clients and broadcasts snapshots to them.
// Snapshots are filtered on a separate goroutine so slow preference storage
// never holds up client registration.
type Hub struct {
	// Registered clients and the last snapshot sequence each one was sent
	clients map[*Client]uint64

	// Raw messages for every client
	broadcast chan []byte

	// Snapshots filtered per client before sending
	snapshots chan types.LiveSnapshot

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Protects clients, last and seq
	mu sync.RWMutex

	filter        SnapshotFilter
	filterTimeout time.Duration
	onMessage     MessageHandler

	// Last snapshot, sent to clients on connect
	last *types.LiveSnapshot
	seq  uint64

	logger zerolog.Logger
}

// NewHub creates a new Hub. filter may be nil to send snapshots unchanged.
func NewHub(logger zerolog.Logger, filter SnapshotFilter) *Hub {
	return &Hub{
		broadcast:     make(chan []byte, 256),
		snapshots:     make(chan types.LiveSnapshot, 16),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		clients:       make(map[*Client]uint64),
		filter:        filter,
		filterTimeout: filterTimeout,
		logger:        logger.With().Str("component", "hub").Logger(),
	}
}

// OnMessage sets the handler for client messages. Call before Run.
func (h *Hub) OnMessage(fn MessageHandler) {
	h.onMessage = fn
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	fanOutDone := make(chan struct{})
	go func() {
		defer close(fanOutDone)
		h.fanOut(ctx)
	}()

	defer func() {
		<-fanOutDone
		h.closeAll()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = 0
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Get().RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Str("username", client.username).
				Int("total_clients", total).
				Msg("client connected")
			go h.greet(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastRaw(message)
		}
	}
}

// Broadcast sends a raw message to all connected clients. It is a no-op once
// the hub has stopped.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastSnapshot queues a snapshot; each client receives its own
// filtered copy. It is a no-op once the hub has stopped.
func (h *Hub) BroadcastSnapshot(snap types.LiveSnapshot) {
	select {
	case h.snapshots <- snap:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) join(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handleMessage(c *Client, msg types.ClientMessage) {
	metrics.Get().RecordWebSocketMessage()
	if h.onMessage != nil {
		h.onMessage(c.username, msg)
	}
}

// fanOut filters and delivers queued snapshots until ctx is cancelled
func (h *Hub) fanOut(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-h.snapshots:
			h.mu.Lock()
			h.seq++
			seq := h.seq
			h.last = &snap
			targets := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				targets = append(targets, client)
			}
			h.mu.Unlock()

			h.sendSnapshot(ctx, targets, seq, snap)
		}
	}
}

// greet sends the last snapshot to a newly registered client
func (h *Hub) greet(ctx context.Context, client *Client) {
	h.mu.RLock()
	last, seq := h.last, h.seq
	h.mu.RUnlock()
	if last == nil {
		return
	}
	h.sendSnapshot(ctx, []*Client{client}, seq, *last)
}

// sendSnapshot filters snap for every distinct user concurrently without
// holding the lock, then delivers it to every target that is still registered
// and has not been sent a newer snapshot
func (h *Hub) sendSnapshot(ctx context.Context, targets []*Client, seq uint64, snap types.LiveSnapshot) {
	encoded := make(map[string][]byte)
	for _, client := range targets {
		encoded[client.username] = nil
	}

	var (
		wg     sync.WaitGroup
		encMu  sync.Mutex
		failed bool
	)
	for username := range encoded {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			data, err := json.Marshal(h.filterFor(ctx, username, snap))
			encMu.Lock()
			defer encMu.Unlock()
			if err != nil {
				failed = true
				return
			}
			encoded[username] = data
		}(username)
	}
	wg.Wait()
	if failed {
		metrics.Get().RecordBroadcastError()
		h.logger.Error().Uint64("seq", seq).Msg("failed to marshal snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range targets {
		sent, ok := h.clients[client]
		if !ok || sent >= seq {
			continue
		}
		if h.deliver(client, encoded[client.username]) {
			h.clients[client] = seq
		}
	}
}

func (h *Hub) filterFor(ctx context.Context, username string, snap types.LiveSnapshot) types.LiveSnapshot {
	if h.filter == nil {
		return snap
	}
	fctx, cancel := context.WithTimeout(ctx, h.filterTimeout)
	defer cancel()
	return h.filter.FilterSnapshot(fctx, username, snap)
}

// broadcastRaw sends a raw message to all clients without filtering
func (h *Hub) broadcastRaw(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.deliver(client, message)
	}
}

// deliver must be called with h.mu held for writing. It reports whether the
// client is still registered.
func (h *Hub) deliver(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		return true
	default:
		// Client's send buffer is full, close and remove it
		close(client.send)
		delete(h.clients, client)
		metrics.Get().RecordWebSocketError()
		h.logger.Warn().
			Str("client_id", client.id).
			Msg("client send buffer full, closing connection")
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.logger.Info().Msg("hub stopped")
}
