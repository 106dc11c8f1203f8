// Package live connects the pollers, the application state and the
// WebSocket hub: fetch results become state actions and every state change
// is pushed to connected consoles.
package live

import (
	"context"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/metrics"
	"github.com/dennisdiepolder/qmconsole/internal/state"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

// SnapshotSink receives live snapshots
type SnapshotSink interface {
	BroadcastSnapshot(snap types.LiveSnapshot)
	ClientCount() int
}

// Broadcaster pushes a snapshot to the hub after every state change. Bursts
// of changes are coalesced; the latest state is always sent.
type Broadcaster struct {
	store  *state.Store
	sink   SnapshotSink
	dirty  chan struct{}
	now    func() time.Time
	logger zerolog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(store *state.Store, sink SnapshotSink, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		store:  store,
		sink:   sink,
		dirty:  make(chan struct{}, 1),
		now:    time.Now,
		logger: logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Snapshot builds the live snapshot for a state
func Snapshot(s state.State, at time.Time) types.LiveSnapshot {
	snap := types.LiveSnapshot{
		Type:      "snapshot",
		Timestamp: at,
		Queues:    s.Queues,
		Agents:    s.Agents,
	}
	if errs := s.Errors(); len(errs) > 0 {
		snap.Errors = errs
	}
	return snap
}

// Notify schedules a broadcast of the current state, e.g. after a user
// changed the filters their snapshots are built with
func (b *Broadcaster) Notify() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

// Start subscribes to the store and broadcasts until ctx is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	unsubscribe := b.store.Subscribe(func(state.State) { b.Notify() })
	defer unsubscribe()

	b.logger.Info().Msg("broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("broadcaster stopped")
			return

		case <-b.dirty:
			s := b.store.State()
			b.sink.BroadcastSnapshot(Snapshot(s, b.now()))
			metrics.Get().RecordSnapshotBroadcast()

			b.logger.Debug().
				Uint64("version", s.Version).
				Int("queues", len(s.Queues)).
				Int("agents", len(s.Agents)).
				Int("clients", b.sink.ClientCount()).
				Msg("snapshot broadcasted")
		}
	}
}
