package filter

import (
	"context"
	"fmt"
)

// State is a user's filter selection for one view
type State struct {
	View       string               `json:"view"`
	Query      string               `json:"query"`
	Selections map[FacetKind]string `json:"selections"`
	Order      SortOrder            `json:"order"`
}

// PreferenceName is the preference under which a view's state is stored
func PreferenceName(view string) string {
	return "filters-" + view
}

// Preferences is the subset of the preference store a Session needs
type Preferences interface {
	Save(ctx context.Context, name string, value any, username string) error
	LoadInto(ctx context.Context, name, username string, dst any) (bool, error)
}

// Session holds the filter state of one view for one user
type Session struct {
	view     View
	prefs    Preferences
	username string
	onChange func(State)
	state    State
}

// NewSession loads the user's saved state for view, falling back to the
// view defaults. onChange may be nil.
func NewSession(ctx context.Context, view View, prefs Preferences, username string, onChange func(State)) (*Session, error) {
	s := &Session{
		view:     view,
		prefs:    prefs,
		username: username,
		onChange: onChange,
		state:    view.Defaults(),
	}

	var saved State
	found, err := prefs.LoadInto(ctx, PreferenceName(view.Name), username, &saved)
	if err != nil {
		return nil, fmt.Errorf("load filters: %w", err)
	}
	if found {
		saved.View = view.Name
		if saved.Selections == nil {
			saved.Selections = map[FacetKind]string{}
		}
		// saved options may no longer exist after a config change
		if view.Validate(saved) == nil {
			s.state = saved
		}
	}
	return s, nil
}

// State returns a copy of the current state
func (s *Session) State() State {
	out := s.state
	out.Selections = make(map[FacetKind]string, len(s.state.Selections))
	for k, v := range s.state.Selections {
		out.Selections[k] = v
	}
	return out
}

// Select sets one facet. Selecting sort-by changes the sort field and keeps
// the direction.
func (s *Session) Select(ctx context.Context, kind FacetKind, option string) error {
	f, ok := s.view.Facet(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFacet, kind)
	}
	if !(option == All && kind != FacetSortBy) && !f.Allows(option) {
		return fmt.Errorf("facet %s: %w: %q", kind, ErrUnknownOption, option)
	}

	next := s.State()
	if kind == FacetSortBy {
		next.Order.Field = option
	} else {
		next.Selections[kind] = option
	}
	return s.commit(ctx, next)
}

// SetQuery replaces the text query
func (s *Session) SetQuery(ctx context.Context, query string) error {
	next := s.State()
	next.Query = query
	return s.commit(ctx, next)
}

// ToggleSort sorts by field, flipping direction on a repeated field
func (s *Session) ToggleSort(ctx context.Context, field string) error {
	next := s.State()
	next.Order = next.Order.Toggle(field)
	if err := s.view.Validate(next); err != nil {
		return err
	}
	return s.commit(ctx, next)
}

// Replace validates and stores a complete state
func (s *Session) Replace(ctx context.Context, st State) error {
	st.View = s.view.Name
	if st.Selections == nil {
		st.Selections = map[FacetKind]string{}
	}
	if err := s.view.Validate(st); err != nil {
		return err
	}
	return s.commit(ctx, st)
}

// Reset restores every facet to its default and clears the query. The reset
// state is persisted and the change callback runs before Reset returns. The
// in-memory state is reset even when persisting fails.
func (s *Session) Reset(ctx context.Context) error {
	return s.commit(ctx, s.view.Defaults())
}

func (s *Session) commit(ctx context.Context, next State) error {
	s.state = next
	err := s.prefs.Save(ctx, PreferenceName(s.view.Name), next, s.username)
	if s.onChange != nil {
		s.onChange(s.State())
	}
	if err != nil {
		return fmt.Errorf("save filters: %w", err)
	}
	return nil
}
