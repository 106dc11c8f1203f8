package filter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dennisdiepolder/qmconsole/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPrefs struct {
	values  map[string]json.RawMessage
	saveErr error
	saves   int
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{values: make(map[string]json.RawMessage)}
}

func (m *memoryPrefs) Save(_ context.Context, name string, value any, username string) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[username+"/"+name] = data
	return nil
}

func (m *memoryPrefs) LoadInto(_ context.Context, name, username string, dst any) (bool, error) {
	data, ok := m.values[username+"/"+name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func TestSessionStartsFromDefaults(t *testing.T) {
	s, err := NewSession(context.Background(), QueuesView(), newMemoryPrefs(), "alice", nil)
	require.NoError(t, err)

	assert.Equal(t, QueuesView().Defaults(), s.State())
}

func TestSessionPersistsSelections(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPrefs()

	s, err := NewSession(ctx, CallsView(), prefs, "alice", nil)
	require.NoError(t, err)
	require.NoError(t, s.Select(ctx, FacetOutcome, "failed"))
	require.NoError(t, s.SetQuery(ctx, "rossi"))
	require.NoError(t, s.ToggleSort(ctx, "time"))

	reloaded, err := NewSession(ctx, CallsView(), prefs, "alice", nil)
	require.NoError(t, err)
	st := reloaded.State()
	assert.Equal(t, "failed", st.Selections[FacetOutcome])
	assert.Equal(t, "rossi", st.Query)
	assert.Equal(t, SortOrder{Field: "time", Dir: stats.Asc}, st.Order)

	other, err := NewSession(ctx, CallsView(), prefs, "bob", nil)
	require.NoError(t, err)
	assert.Equal(t, CallsView().Defaults(), other.State())
}

func TestSessionSelectValidates(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPrefs()
	s, err := NewSession(ctx, QueuesView(), prefs, "alice", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Select(ctx, FacetStatus, "sleeping"), ErrUnknownOption)
	assert.ErrorIs(t, s.Select(ctx, FacetOutcome, "failed"), ErrUnknownFacet)
	assert.ErrorIs(t, s.Select(ctx, FacetSortBy, All), ErrUnknownOption)
	assert.Equal(t, 0, prefs.saves, "rejected selections must not be persisted")

	require.NoError(t, s.Select(ctx, FacetGroup, "sales"))
	require.NoError(t, s.Select(ctx, FacetSortBy, "tot"))
	assert.Equal(t, "sales", s.State().Selections[FacetGroup])
	assert.Equal(t, "tot", s.State().Order.Field)
}

func TestSessionResetPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPrefs()

	var notified []State
	s, err := NewSession(ctx, AgentsView(), prefs, "alice", func(st State) {
		notified = append(notified, st)
	})
	require.NoError(t, err)

	require.NoError(t, s.Select(ctx, FacetStatus, "busy"))
	require.NoError(t, s.SetQuery(ctx, "mario"))
	require.NoError(t, s.Reset(ctx))

	require.Len(t, notified, 3)
	assert.Equal(t, AgentsView().Defaults(), notified[2])
	assert.Equal(t, AgentsView().Defaults(), s.State())

	var saved State
	found, err := prefs.LoadInto(ctx, PreferenceName("agents"), "alice", &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, AgentsView().Defaults(), saved)
}

func TestSessionResetSurfacesSaveError(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPrefs()
	notified := false

	s, err := NewSession(ctx, QueuesView(), prefs, "alice", func(State) { notified = true })
	require.NoError(t, err)

	prefs.saveErr = errors.New("disk full")
	err = s.Reset(ctx)

	assert.ErrorContains(t, err, "disk full")
	assert.True(t, notified)
	assert.Equal(t, QueuesView().Defaults(), s.State())
}

func TestSessionIgnoresInvalidSavedState(t *testing.T) {
	ctx := context.Background()
	prefs := newMemoryPrefs()
	require.NoError(t, prefs.Save(ctx, PreferenceName("queues"), State{
		Selections: map[FacetKind]string{FacetStatus: "retired"},
		Order:      SortOrder{Field: "name", Dir: stats.Asc},
	}, "alice"))

	s, err := NewSession(ctx, QueuesView(), prefs, "alice", nil)
	require.NoError(t, err)

	assert.Equal(t, QueuesView().Defaults(), s.State())
}

func TestSessionReplace(t *testing.T) {
	ctx := context.Background()
	s, err := NewSession(ctx, QueuesView(), newMemoryPrefs(), "alice", nil)
	require.NoError(t, err)

	err = s.Replace(ctx, State{
		Query:      "support",
		Selections: map[FacetKind]string{FacetStatus: "alarm"},
		Order:      SortOrder{Field: "waiting", Dir: stats.Desc},
	})
	require.NoError(t, err)
	assert.Equal(t, "queues", s.State().View)

	err = s.Replace(ctx, State{Order: SortOrder{Field: "colour"}})
	assert.ErrorIs(t, err, ErrUnknownOption)
}
