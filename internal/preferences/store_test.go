package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, kv storage.KV, opts ...Option) *Store {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	store := NewStore(kv, zerolog.Nop(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-store.done
	})
	return store
}

func TestSaveThenLoad(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", map[string]int{"rows": 25}, "u"))

	raw, found, err := store.Load(ctx, "k", "u")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"rows":25}`, string(raw))
}

func TestSavePreservesUnrelatedKeys(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", "v", "u"))
	require.NoError(t, store.Save(ctx, "k2", "v2", "u"))

	var v string
	found, err := store.LoadInto(ctx, "k", "u", &v)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", v)

	all, err := store.All(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t, nil)

	raw, found, err := store.Load(context.Background(), "absent", "u")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, raw)

	dst := "default"
	found, err = store.LoadInto(context.Background(), "absent", "u", &dst)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "default", dst)
}

func TestPreferencesAreScopedByUsername(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "theme", "dark", "alice"))

	_, found, err := store.Load(ctx, "theme", "bob")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentSavesDoNotDropWrites(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, fmt.Sprintf("pref-%d", i), i, "u"))
		}(i)
	}
	wg.Wait()

	all, err := store.All(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestLastWriteWins(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "rows", 10, "u"))
	require.NoError(t, store.Save(ctx, "rows", 50, "u"))

	var rows int
	_, err := store.LoadInto(ctx, "rows", "u", &rows)
	require.NoError(t, err)
	assert.Equal(t, 50, rows)
}

type failingKV struct{ storage.KV }

func (failingKV) Put(context.Context, string, []byte) error { return errors.New("quota exceeded") }

// gatedKV holds every Put until release is closed
type gatedKV struct {
	storage.KV
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKV) Put(ctx context.Context, key string, value []byte) error {
	g.entered <- struct{}{}
	<-g.release
	return g.KV.Put(ctx, key, value)
}

func TestSaveReportsAcceptedWriteAfterCancel(t *testing.T) {
	kv := &gatedKV{KV: storage.NewMemoryKV(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	store := newTestStore(t, kv)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- store.Save(ctx, "theme", "dark", "alice") }()

	<-kv.entered
	cancel()
	close(kv.release)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Save did not return")
	}

	raw, found, err := store.Load(context.Background(), "theme", "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `"dark"`, string(raw))
}

func TestSaveSurfacesStorageFailure(t *testing.T) {
	store := newTestStore(t, failingKV{storage.NewMemoryKV()})

	err := store.Save(context.Background(), "k", "v", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSaveAfterRunExits(t *testing.T) {
	store := NewStore(storage.NewMemoryKV(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	cancel()
	<-store.done

	err := store.Save(context.Background(), "k", "v", "u")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	store := newTestStore(t, nil, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.SaveCache(ctx, "queues", map[string]any{"items": []int{1, 2}}, "u", 1000*time.Millisecond))

	raw, hit, err := store.LoadCache(ctx, "queues", "u")
	require.NoError(t, err)
	require.True(t, hit)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, float64(1_700_000_001_000), entry[ExpirationField])
	assert.Equal(t, []any{float64(1), float64(2)}, entry["items"])

	clock.Advance(1100 * time.Millisecond)

	raw, hit, err = store.LoadCache(ctx, "queues", "u")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, raw)
}

func TestCacheExactlyAtExpirationStillHits(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(5_000)}
	store := newTestStore(t, nil, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.SaveCache(ctx, "c", map[string]int{"n": 1}, "u", time.Second))
	clock.Advance(time.Second)

	_, hit, err := store.LoadCache(ctx, "c", "u")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCacheWrapsNonObjectPayload(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := newTestStore(t, nil, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.SaveCache(ctx, "list", []string{"a", "b"}, "u", time.Minute))

	raw, hit, err := store.LoadCache(ctx, "list", "u")
	require.NoError(t, err)
	require.True(t, hit)
	assert.JSONEq(t, `{"data":["a","b"],"_expiration":60000}`, string(raw))
}

func TestCacheDoesNotTouchPreferences(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "theme", "dark", "u"))
	require.NoError(t, store.SaveCache(ctx, "theme", map[string]string{"x": "y"}, "u", time.Minute))
	require.NoError(t, store.ClearCache(ctx, "u"))

	_, hit, err := store.LoadCache(ctx, "theme", "u")
	require.NoError(t, err)
	assert.False(t, hit)

	var theme string
	found, err := store.LoadInto(ctx, "theme", "u", &theme)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "dark", theme)
}

func TestDeleteCacheKeepsOtherEntries(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveCache(ctx, "a", map[string]int{"n": 1}, "u", time.Minute))
	require.NoError(t, store.SaveCache(ctx, "b", map[string]int{"n": 2}, "u", time.Minute))
	require.NoError(t, store.DeleteCache(ctx, "a", "u"))

	_, hit, _ := store.LoadCache(ctx, "a", "u")
	assert.False(t, hit)
	_, hit, _ = store.LoadCache(ctx, "b", "u")
	assert.True(t, hit)
}
