package state

import "sync"

type subscription struct {
	id int
	fn func(State)
}

// Store owns the current State
type Store struct {
	mu          sync.Mutex
	state       State
	nextID      int
	subscribers []subscription
}

// NewStore creates a store holding the initial state
func NewStore() *Store {
	return &Store{state: Initial()}
}

// State returns the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces the action into the current state and calls every
// subscriber with the result before returning. Actions that do not change
// the state are not broadcast.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next := Reduce(s.state, a)
	if next.Version == s.state.Version {
		s.mu.Unlock()
		return next
	}
	s.state = next
	subs := append([]subscription(nil), s.subscribers...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
	return next
}

// Subscribe registers fn for state changes and returns a function that
// removes it
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}
