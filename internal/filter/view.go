package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dennisdiepolder/qmconsole/internal/stats"
)

// View is a list view together with its facets
type View struct {
	Name   string  `json:"name"`
	Facets []Facet `json:"facets"`
}

// Facet returns the view's facet of the given kind
func (v View) Facet(kind FacetKind) (Facet, bool) {
	for _, f := range v.Facets {
		if f.Kind == kind {
			return f, true
		}
	}
	return Facet{}, false
}

// Defaults returns the view's initial state
func (v View) Defaults() State {
	st := State{
		View:       v.Name,
		Selections: make(map[FacetKind]string),
		Order:      SortOrder{Field: "name", Dir: stats.Asc},
	}
	for _, f := range v.Facets {
		if f.Kind == FacetSortBy {
			st.Order.Field = f.Default
			continue
		}
		st.Selections[f.Kind] = f.Default
	}
	return st
}

// WithDefaults returns a copy of the view whose facet defaults are replaced
// by overrides (facet name -> option).
func (v View) WithDefaults(overrides map[string]string) (View, error) {
	out := View{Name: v.Name, Facets: append([]Facet(nil), v.Facets...)}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		kind, err := ParseFacetKind(name)
		if err != nil {
			return View{}, fmt.Errorf("view %s: %w", v.Name, err)
		}
		found := false
		for i, f := range out.Facets {
			if f.Kind != kind {
				continue
			}
			option := overrides[name]
			if option != All && !f.Allows(option) {
				return View{}, fmt.Errorf("view %s facet %s: %w: %q", v.Name, kind, ErrUnknownOption, option)
			}
			out.Facets[i].Default = option
			found = true
		}
		if !found {
			return View{}, fmt.Errorf("view %s: %w: %q", v.Name, ErrUnknownFacet, name)
		}
	}
	return out, nil
}

// Validate checks every selection and the sort field against the view
func (v View) Validate(st State) error {
	for kind, option := range st.Selections {
		f, ok := v.Facet(kind)
		if !ok || kind == FacetSortBy {
			return fmt.Errorf("%w: %q", ErrUnknownFacet, kind)
		}
		if option != All && !f.Allows(option) {
			return fmt.Errorf("facet %s: %w: %q", kind, ErrUnknownOption, option)
		}
	}
	if f, ok := v.Facet(FacetSortBy); ok && !f.Allows(st.Order.Field) {
		return fmt.Errorf("facet %s: %w: %q", FacetSortBy, ErrUnknownOption, st.Order.Field)
	}
	return nil
}

// Parse builds a state from URL query parameters: q for the text query, one
// parameter per facet name, sort and dir for the order. Absent parameters
// keep the view default.
func (v View) Parse(values url.Values) (State, error) {
	return v.ParseFrom(v.Defaults(), values)
}

// ParseFrom is Parse with absent parameters keeping the values of base
func (v View) ParseFrom(base State, values url.Values) (State, error) {
	st := base
	st.View = v.Name
	st.Selections = make(map[FacetKind]string, len(base.Selections))
	for k, opt := range base.Selections {
		st.Selections[k] = opt
	}
	if values.Has("q") {
		st.Query = strings.TrimSpace(values.Get("q"))
	}

	for _, f := range v.Facets {
		if f.Kind == FacetSortBy {
			continue
		}
		if option := values.Get(string(f.Kind)); option != "" {
			st.Selections[f.Kind] = option
		}
	}
	if field := values.Get("sort"); field != "" {
		st.Order.Field = field
	}
	if dir := values.Get("dir"); dir != "" {
		st.Order.Dir = stats.ParseDirection(dir)
	}

	if err := v.Validate(st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Registry holds the views served by the console
type Registry struct {
	views map[string]View
}

// NewRegistry builds the built-in views and applies per-view default
// overrides (view -> facet -> option).
func NewRegistry(overrides map[string]map[string]string) (*Registry, error) {
	r := &Registry{views: make(map[string]View)}
	for _, v := range []View{QueuesView(), AgentsView(), CallsView()} {
		r.views[v.Name] = v
	}

	for name, defaults := range overrides {
		v, ok := r.views[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
		}
		adapted, err := v.WithDefaults(defaults)
		if err != nil {
			return nil, err
		}
		r.views[name] = adapted
	}
	return r, nil
}

// View looks up a view by name
func (r *Registry) View(name string) (View, error) {
	v, ok := r.views[name]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return v, nil
}
