package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/poller"
	"github.com/dennisdiepolder/qmconsole/internal/state"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

// Source is the remote PBX API
type Source interface {
	Queues(ctx context.Context) ([]types.QueueRecord, error)
	Agents(ctx context.Context) ([]types.AgentStat, error)
	Calls(ctx context.Context, page int) (types.CallPage, error)
}

// Intervals configures how often each panel is refreshed
type Intervals struct {
	Queues  time.Duration
	Agents  time.Duration
	Calls   time.Duration
	Timeout time.Duration
}

// refresher is the part of a poller the panel set needs
type refresher interface {
	Start(ctx context.Context)
	Refresh()
	Stop()
}

// Pollers refreshes every panel and feeds the results into the store
type Pollers struct {
	store  *state.Store
	panels map[string]refresher
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewPollers creates one poller per panel
func NewPollers(src Source, store *state.Store, iv Intervals, logger zerolog.Logger, opts ...poller.Option) *Pollers {
	p := &Pollers{
		store:  store,
		panels: make(map[string]refresher, 3),
		logger: logger.With().Str("component", "pollers").Logger(),
	}

	opts = append([]poller.Option{poller.WithLogger(logger), poller.WithTimeout(iv.Timeout)}, opts...)

	queues := poller.New(types.PanelQueues, iv.Queues, src.Queues, opts...)
	queues.OnUpdate(func(s poller.Snapshot[[]types.QueueRecord]) {
		if s.Err != nil {
			p.failed(types.PanelQueues, s.Err, s.UpdatedAt)
			return
		}
		store.Dispatch(state.QueuesLoaded{Queues: s.Data, At: s.UpdatedAt})
	})

	agents := poller.New(types.PanelAgents, iv.Agents, src.Agents, opts...)
	agents.OnUpdate(func(s poller.Snapshot[[]types.AgentStat]) {
		if s.Err != nil {
			p.failed(types.PanelAgents, s.Err, s.UpdatedAt)
			return
		}
		store.Dispatch(state.AgentsLoaded{Agents: s.Data, At: s.UpdatedAt})
	})

	calls := poller.New(types.PanelCalls, iv.Calls, func(ctx context.Context) (types.CallPage, error) {
		return src.Calls(ctx, store.State().CallPage)
	}, opts...)
	calls.OnUpdate(func(s poller.Snapshot[types.CallPage]) {
		if s.Err != nil {
			p.failed(types.PanelCalls, s.Err, s.UpdatedAt)
			return
		}
		store.Dispatch(state.CallsLoaded{Page: s.Data, At: s.UpdatedAt})
	})

	p.panels[types.PanelQueues] = queues
	p.panels[types.PanelAgents] = agents
	p.panels[types.PanelCalls] = calls
	return p
}

func (p *Pollers) failed(panel string, err error, at time.Time) {
	p.store.Dispatch(state.FetchFailed{Panel: panel, Err: err.Error(), At: at})
}

// Start runs every poller until ctx is cancelled. It blocks.
func (p *Pollers) Start(ctx context.Context) {
	for name, r := range p.panels {
		p.wg.Add(1)
		go func(name string, r refresher) {
			defer p.wg.Done()
			r.Start(ctx)
		}(name, r)
	}
	p.logger.Info().Int("panels", len(p.panels)).Msg("pollers started")
	p.wg.Wait()
}

// Refresh fetches one panel now
func (p *Pollers) Refresh(panel string) error {
	r, ok := p.panels[panel]
	if !ok {
		return fmt.Errorf("unknown panel %q", panel)
	}
	r.Refresh()
	return nil
}

// SelectCallPage switches the call history page and fetches it
func (p *Pollers) SelectCallPage(page int) error {
	if page < 1 {
		return fmt.Errorf("invalid page %d", page)
	}
	p.store.Dispatch(state.CallPageSelected{Page: page})
	return p.Refresh(types.PanelCalls)
}

// HandleClientMessage serves refresh requests sent over the live feed
func (p *Pollers) HandleClientMessage(username string, msg types.ClientMessage) {
	if msg.Type != types.ClientRefresh {
		return
	}
	if err := p.Refresh(msg.Panel); err != nil {
		p.logger.Debug().Err(err).Str("username", username).Msg("ignoring refresh request")
	}
}

// Stop stops every poller
func (p *Pollers) Stop() {
	for _, r := range p.panels {
		r.Stop()
	}
}
