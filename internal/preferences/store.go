// Package preferences persists per-user console settings and time-boxed
// caches of API responses.
//
// Every user owns two JSON documents in the KV backend:
// "preferences-{username}" (durable settings, last write wins) and
// "caches-{username}" (entries carrying an "_expiration" epoch-millis
// field). Writes go through a single writer loop, so concurrent saves of
// different names for the same user never drop each other.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/metrics"
	"github.com/dennisdiepolder/qmconsole/internal/storage"
	"github.com/rs/zerolog"
)

// ExpirationField is the cache entry field holding the expiry in epoch millis
const ExpirationField = "_expiration"

// ErrStoreClosed is returned when a write is submitted after Run has exited
var ErrStoreClosed = errors.New("preference store closed")

type document map[string]json.RawMessage

type writeRequest struct {
	key    string
	mutate func(doc document) document
	reply  chan error
}

// Store reads and writes preference and cache documents
type Store struct {
	kv     storage.KV
	now    func() time.Time
	writes chan writeRequest
	done   chan struct{}
	logger zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for cache expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store on top of kv. Run must be started before any
// Save call returns.
func NewStore(kv storage.KV, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		now:    time.Now,
		writes: make(chan writeRequest),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "preferences").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run applies queued writes one at a time until ctx is cancelled
func (s *Store) Run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info().Msg("preference writer started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("preference writer stopped")
			return
		case req := <-s.writes:
			req.reply <- s.apply(ctx, req)
		}
	}
}

// apply performs one read-modify-write cycle
func (s *Store) apply(ctx context.Context, req writeRequest) error {
	doc, err := s.readDocument(ctx, req.key)
	if err != nil {
		return err
	}

	doc = req.mutate(doc)
	if doc == nil {
		if err := s.kv.Delete(ctx, req.key); err != nil {
			return fmt.Errorf("delete %s: %w", req.key, err)
		}
		return nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", req.key, err)
	}
	if err := s.kv.Put(ctx, req.key, data); err != nil {
		return fmt.Errorf("write %s: %w", req.key, err)
	}
	metrics.Get().RecordPreferenceWrite()
	return nil
}

// submit hands a write to the writer loop and waits for its result. ctx only
// bounds the hand-off: once the writer has accepted the request the write is
// applied and its outcome returned even if ctx is cancelled meanwhile.
func (s *Store) submit(ctx context.Context, key string, mutate func(document) document) error {
	req := writeRequest{key: key, mutate: mutate, reply: make(chan error, 1)}

	select {
	case s.writes <- req:
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Run always replies to an accepted request
	if err := <-req.reply; err != nil {
		metrics.Get().RecordPreferenceError()
		s.logger.Error().Err(err).Str("key", key).Msg("preference write failed")
		return err
	}
	return nil
}

func (s *Store) readDocument(ctx context.Context, key string) (document, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func preferencesKey(username string) string { return "preferences-" + username }

func cachesKey(username string) string { return "caches-" + username }

// Save stores value under name in the user's preference document, keeping
// every other preference untouched
func (s *Store) Save(ctx context.Context, name string, value any, username string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal preference %q: %w", name, err)
	}
	return s.submit(ctx, preferencesKey(username), func(doc document) document {
		doc[name] = raw
		return doc
	})
}

// Load returns the raw JSON value of a preference. found is false when the
// preference was never saved; callers supply their own default.
func (s *Store) Load(ctx context.Context, name, username string) (value json.RawMessage, found bool, err error) {
	doc, err := s.readDocument(ctx, preferencesKey(username))
	if err != nil {
		return nil, false, err
	}
	value, found = doc[name]
	return value, found, nil
}

// LoadInto decodes a preference into dst. dst is left untouched when the
// preference is absent.
func (s *Store) LoadInto(ctx context.Context, name, username string, dst any) (bool, error) {
	raw, found, err := s.Load(ctx, name, username)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode preference %q: %w", name, err)
	}
	return true, nil
}

// All returns every preference of a user
func (s *Store) All(ctx context.Context, username string) (map[string]json.RawMessage, error) {
	doc, err := s.readDocument(ctx, preferencesKey(username))
	if err != nil {
		return nil, err
	}
	return doc, nil
}
