package live

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/filter"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/rs/zerolog"
)

// filterCacheTTL bounds how long a saved filter state is reused without
// reading it again. Changes made through the filters API replace the cached
// state immediately.
const filterCacheTTL = time.Minute

type cachedState struct {
	state   filter.State
	expires time.Time
}

// PreferenceFilter applies each user's saved queue and agent filters to
// live snapshots
type PreferenceFilter struct {
	views  *filter.Registry
	prefs  filter.Preferences
	now    func() time.Time
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedState
}

// NewPreferenceFilter creates a new PreferenceFilter
func NewPreferenceFilter(views *filter.Registry, prefs filter.Preferences, logger zerolog.Logger) *PreferenceFilter {
	return &PreferenceFilter{
		views:  views,
		prefs:  prefs,
		now:    time.Now,
		logger: logger.With().Str("component", "snapshot_filter").Logger(),
		cache:  make(map[string]cachedState),
	}
}

// FilterSnapshot returns the snapshot as the user's console shows it. On a
// preference error the view's defaults are used.
func (f *PreferenceFilter) FilterSnapshot(ctx context.Context, username string, snap types.LiveSnapshot) types.LiveSnapshot {
	if queues, ok := f.state(ctx, types.PanelQueues, username); ok {
		snap.Queues = filter.ApplyState(snap.Queues, queues)
	}
	if agents, ok := f.state(ctx, types.PanelAgents, username); ok {
		snap.Agents = filter.ApplyAgents(snap.Agents, agents)
	}
	return snap
}

// Update replaces the cached state of st.View for username
func (f *PreferenceFilter) Update(username string, st filter.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[cacheKey(st.View, username)] = cachedState{state: st, expires: f.now().Add(filterCacheTTL)}
}

func cacheKey(view, username string) string { return view + "/" + username }

func (f *PreferenceFilter) state(ctx context.Context, view, username string) (filter.State, bool) {
	v, err := f.views.View(view)
	if err != nil {
		return filter.State{}, false
	}

	key := cacheKey(view, username)
	f.mu.Lock()
	cached, ok := f.cache[key]
	f.mu.Unlock()
	if ok && f.now().Before(cached.expires) {
		return cached.state, true
	}

	session, err := filter.NewSession(ctx, v, f.prefs, username, nil)
	if err != nil {
		// not cached so the next snapshot retries
		f.logger.Warn().Err(err).Str("view", view).Str("username", username).Msg("using default filters")
		return v.Defaults(), true
	}
	st := session.State()

	f.mu.Lock()
	f.cache[key] = cachedState{state: st, expires: f.now().Add(filterCacheTTL)}
	f.mu.Unlock()
	return st, true
}
