package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SaveCache stores payload in the user's cache namespace with an expiry of
// now+ttl. Object payloads get the "_expiration" field merged in; any other
// JSON value is wrapped as {"data": payload, "_expiration": ...}.
func (s *Store) SaveCache(ctx context.Context, name string, payload any, username string, ttl time.Duration) error {
	entry, err := cacheEntry(payload, s.now().Add(ttl))
	if err != nil {
		return fmt.Errorf("cache %q: %w", name, err)
	}
	return s.submit(ctx, cachesKey(username), func(doc document) document {
		doc[name] = entry
		return doc
	})
}

// LoadCache returns the stored cache entry, including its "_expiration"
// field, as long as it has not expired. Expired or malformed entries are
// reported as a miss.
func (s *Store) LoadCache(ctx context.Context, name, username string) (json.RawMessage, bool, error) {
	doc, err := s.readDocument(ctx, cachesKey(username))
	if err != nil {
		return nil, false, err
	}
	raw, ok := doc[name]
	if !ok {
		return nil, false, nil
	}

	var entry struct {
		Expiration *int64 `json:"_expiration"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Expiration == nil {
		return nil, false, nil
	}
	if s.now().UnixMilli() > *entry.Expiration {
		return nil, false, nil
	}
	return raw, true, nil
}

// DeleteCache removes a single cache entry
func (s *Store) DeleteCache(ctx context.Context, name, username string) error {
	return s.submit(ctx, cachesKey(username), func(doc document) document {
		delete(doc, name)
		return doc
	})
}

// ClearCache drops the user's whole cache namespace
func (s *Store) ClearCache(ctx context.Context, username string) error {
	return s.submit(ctx, cachesKey(username), func(document) document {
		return nil
	})
}

func cacheEntry(payload any, expires time.Time) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	exp, _ := json.Marshal(expires.UnixMilli())

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		fields = map[string]json.RawMessage{"data": raw}
	}
	fields[ExpirationField] = exp

	return json.Marshal(fields)
}
