// Package poller refreshes remote data on a fixed interval. A tick is skipped
// while a fetch is still in flight. Every fetch is stamped with a dispatch
// sequence and a response that resolves after a newer request was dispatched
// is dropped, so the snapshot reflects the latest request rather than the
// slowest one.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/metrics"
	"github.com/rs/zerolog"
)

// State is the refresher's position in the fetch cycle
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

const defaultTimeout = 10 * time.Second

// FetchFunc loads one generation of data
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is the latest known result of a refresher
type Snapshot[T any] struct {
	State     State
	Data      T
	HasData   bool
	Err       error
	Seq       uint64
	UpdatedAt time.Time
}

// Option configures a Poller
type Option func(*options)

type options struct {
	clock   Clock
	timeout time.Duration
	logger  zerolog.Logger
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTimeout bounds each individual fetch
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger; a component field with the poller name is added
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Poller periodically calls a FetchFunc and keeps the latest result
type Poller[T any] struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fetch    FetchFunc[T]
	clock    Clock
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	snap        Snapshot[T]
	dispatched  uint64
	inflight    int
	stopped     bool
	subscribers []func(Snapshot[T])

	// held while subscribers run so Stop can wait for delivery to finish
	notifyMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Poller. It does nothing until Start or Refresh is called.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option) *Poller[T] {
	o := options{
		clock:   realClock{},
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller[T]{
		name:     name,
		interval: interval,
		timeout:  o.timeout,
		fetch:    fetch,
		clock:    o.clock,
		logger:   o.logger.With().Str("component", "poller").Str("poller", name).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		snap:     Snapshot[T]{State: StateIdle},
		stopCh:   make(chan struct{}),
	}
}

// Name returns the refresher name
func (p *Poller[T]) Name() string {
	return p.name
}

// OnUpdate registers fn to receive every applied snapshot
func (p *Poller[T]) OnUpdate(fn func(Snapshot[T])) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, fn)
	p.mu.Unlock()
}

// Snapshot returns the latest state
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Start fetches immediately and then on every tick until ctx is cancelled
// or Stop is called. It blocks.
func (p *Poller[T]) Start(ctx context.Context) {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.interval).Dur("timeout", p.timeout).Msg("poller started")
	p.Refresh()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			p.logger.Info().Msg("poller stopped")
			return
		case <-p.stopCh:
			p.logger.Info().Msg("poller stopped")
			return
		case <-ticker.Chan():
			p.tick()
		}
	}
}

// Refresh dispatches an out-of-band fetch that supersedes any fetch in
// flight. It returns immediately.
func (p *Poller[T]) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatchLocked()
}

// tick dispatches a scheduled fetch unless one is still running
func (p *Poller[T]) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight > 0 {
		p.logger.Debug().Int("inflight", p.inflight).Msg("skipping tick, fetch in flight")
		return
	}
	p.dispatchLocked()
}

func (p *Poller[T]) dispatchLocked() {
	if p.stopped {
		return
	}
	p.dispatched++
	p.inflight++
	p.snap.State = StateFetching
	go p.run(p.dispatched)
}

// Stop clears the timer and cancels in-flight fetches. No subscriber is
// called after Stop returns. Stop must not be called from a subscriber.
func (p *Poller[T]) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.stopCh)
		p.cancel()

		p.notifyMu.Lock()
		p.notifyMu.Unlock()
	})
}

func (p *Poller[T]) run(seq uint64) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	started := p.clock.Now()
	data, err := p.fetch(ctx)
	metrics.Get().RecordPoll(p.name, p.clock.Now().Sub(started), err)

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	p.inflight--
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if seq < p.dispatched {
		p.mu.Unlock()
		metrics.Get().RecordStaleResponse(p.name)
		p.logger.Debug().Uint64("seq", seq).Msg("dropped stale response")
		return
	}

	p.snap.State = StateIdle
	p.snap.Seq = seq
	p.snap.UpdatedAt = p.clock.Now()
	p.snap.Err = err
	if err == nil {
		p.snap.Data = data
		p.snap.HasData = true
	}
	snap := p.snap
	subscribers := append([]func(Snapshot[T]){}, p.subscribers...)
	p.mu.Unlock()

	if err != nil {
		p.logger.Error().Err(err).Uint64("seq", seq).Msg("fetch failed")
	} else {
		p.logger.Debug().Uint64("seq", seq).Msg("fetch completed")
	}

	for _, fn := range subscribers {
		fn(snap)
	}
}
