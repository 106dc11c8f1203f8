package filter

import (
	"net/url"
	"testing"

	"github.com/dennisdiepolder/qmconsole/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewDefaults(t *testing.T) {
	st := QueuesView().Defaults()

	assert.Equal(t, "queues", st.View)
	assert.Equal(t, "", st.Query)
	assert.Equal(t, map[FacetKind]string{FacetStatus: All, FacetGroup: All}, st.Selections)
	assert.Equal(t, SortOrder{Field: "name", Dir: stats.Asc}, st.Order)
}

func TestParseFacetKind(t *testing.T) {
	k, err := ParseFacetKind("sort-by")
	require.NoError(t, err)
	assert.Equal(t, FacetSortBy, k)

	_, err = ParseFacetKind("colour")
	assert.ErrorIs(t, err, ErrUnknownFacet)
}

func TestViewParse(t *testing.T) {
	v := CallsView()

	st, err := v.Parse(url.Values{
		"q":       {" rossi "},
		"outcome": {"failed"},
		"queue":   {"100"},
		"sort":    {"time"},
		"dir":     {"desc"},
	})
	require.NoError(t, err)

	assert.Equal(t, "rossi", st.Query)
	assert.Equal(t, "failed", st.Selections[FacetOutcome])
	assert.Equal(t, "100", st.Selections[FacetQueue])
	assert.Equal(t, SortOrder{Field: "time", Dir: stats.Desc}, st.Order)
}

func TestViewParseRejectsUnknownOptions(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{name: "closed facet", values: url.Values{"outcome": {"lost"}}},
		{name: "sort field", values: url.Values{"sort": {"colour"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CallsView().Parse(tt.values)
			assert.ErrorIs(t, err, ErrUnknownOption)
		})
	}
}

func TestWithDefaults(t *testing.T) {
	v, err := AgentsView().WithDefaults(map[string]string{"status": "available", "sort-by": "calls_taken"})
	require.NoError(t, err)

	st := v.Defaults()
	assert.Equal(t, "available", st.Selections[FacetStatus])
	assert.Equal(t, "calls_taken", st.Order.Field)

	_, err = AgentsView().WithDefaults(map[string]string{"status": "sleeping"})
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = AgentsView().WithDefaults(map[string]string{"outcome": "failed"})
	assert.ErrorIs(t, err, ErrUnknownFacet)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(map[string]map[string]string{
		"queues": {"status": "waiting"},
	})
	require.NoError(t, err)

	v, err := r.View("queues")
	require.NoError(t, err)
	assert.Equal(t, "waiting", v.Defaults().Selections[FacetStatus])

	_, err = r.View("reports")
	assert.ErrorIs(t, err, ErrUnknownView)

	_, err = NewRegistry(map[string]map[string]string{"reports": {}})
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestViewParseFromKeepsBase(t *testing.T) {
	v := QueuesView()
	base := v.Defaults()
	base.Query = "support"
	base.Selections[FacetGroup] = "helpdesk"

	st, err := v.ParseFrom(base, url.Values{"status": {"alarm"}})
	require.NoError(t, err)

	assert.Equal(t, "support", st.Query)
	assert.Equal(t, "helpdesk", st.Selections[FacetGroup])
	assert.Equal(t, "alarm", st.Selections[FacetStatus])
	assert.Equal(t, All, base.Selections[FacetStatus], "base must not be modified")

	st, err = v.ParseFrom(base, url.Values{"q": {""}})
	require.NoError(t, err)
	assert.Equal(t, "", st.Query, "explicit empty q clears the query")
}
