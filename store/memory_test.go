package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/mindcare/store"
	"github.com/hrygo/mindcare/store/db/memory"
)

func TestMemoryStore_StoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.NewDB())

	require.NoError(t, s.Memory.Store(ctx, "greeting", map[string]string{"text": "hello"}, 0))

	raw, ok := s.Memory.Retrieve(ctx, "greeting")
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"hello"}`, string(raw))

	_, ok = s.Memory.Retrieve(ctx, "missing")
	assert.False(t, ok)

	s.Memory.Delete(ctx, "greeting")
	_, ok = s.Memory.Retrieve(ctx, "greeting")
	assert.False(t, ok)
}

func TestMemoryStore_RetrieveAs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.NewDB())
	require.NoError(t, s.Memory.Store(ctx, "count", 41, 0))

	n, ok, err := store.RetrieveAs[int](ctx, s.Memory, "count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 41, n)

	_, _, err = store.RetrieveAs[[]string](ctx, s.Memory, "count")
	assert.Error(t, err)
}

func TestMemoryStore_TTLExpiryEvicts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, memory.NewDB(), store.WithClock(clock.Now))

	require.NoError(t, s.Memory.Store(ctx, "short", "v", time.Minute))
	require.NoError(t, s.Memory.Store(ctx, "long", "v", 0))

	_, ok := s.Memory.Retrieve(ctx, "short")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = s.Memory.Retrieve(ctx, "short")
	assert.False(t, ok, "entry is absent once its expiry is reached")
	assert.Equal(t, 1, s.Memory.Len(), "expired entry is evicted on access")

	_, ok = s.Memory.Retrieve(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryStore_SearchSkipsAndEvictsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, memory.NewDB(), store.WithClock(clock.Now))

	require.NoError(t, s.Memory.Store(ctx, "pref:color", "blue", 0))
	require.NoError(t, s.Memory.Store(ctx, "pref:food", "pasta", time.Second))
	require.NoError(t, s.Memory.Store(ctx, "note", "likes blue skies", 0))

	results := s.Memory.Search(ctx, "blue")
	require.Len(t, results, 2)
	assert.Equal(t, "note", results[0].Key)
	assert.Equal(t, "pref:color", results[1].Key)

	clock.Advance(2 * time.Second)
	results = s.Memory.Search(ctx, "pref:")
	require.Len(t, results, 1)
	assert.Equal(t, "pref:color", results[0].Key)
	assert.Equal(t, 2, s.Memory.Len())
}

func TestMemoryStore_SearchMatchesSpecialCharacters(t *testing.T) {
	ctx := context.Background()
	driver := memory.NewDB()
	s := newTestStore(t, driver)
	require.NoError(t, s.Memory.Store(ctx, "note", "cats & dogs <3", 0))

	for _, pattern := range []string{"cats", "& dogs", "<3"} {
		assert.Len(t, s.Memory.Search(ctx, pattern), 1, pattern)
	}
	raw, ok := s.Memory.Retrieve(ctx, "note")
	require.True(t, ok)
	assert.Equal(t, `"cats & dogs <3"`, string(raw))

	require.NoError(t, s.Close(ctx))
	reloaded := newTestStore(t, driver.Reopen())
	assert.Len(t, reloaded.Memory.Search(ctx, "& dogs"), 1)
	assert.Len(t, reloaded.Memory.Search(ctx, "<3"), 1)
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.NewDB())
	require.NoError(t, s.Memory.Store(ctx, "a", 1, 0))
	require.NoError(t, s.Memory.Store(ctx, "b", 2, 0))
	s.Memory.Clear(ctx)
	assert.Equal(t, 0, s.Memory.Len())
}

func TestMemoryStore_IncrementIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.NewDB())

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Memory.Increment(ctx, "counter")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, ok, err := store.RetrieveAs[int64](ctx, s.Memory, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(n), count)
}

func TestMemoryStore_IncrementRejectsNonInteger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.NewDB())
	require.NoError(t, s.Memory.Store(ctx, "counter", "many", 0))
	_, err := s.Memory.Increment(ctx, "counter")
	assert.Error(t, err)
}

func TestMemoryStore_UpdateKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, memory.NewDB(), store.WithClock(clock.Now))
	require.NoError(t, s.Memory.Store(ctx, "k", 1, time.Minute))

	require.NoError(t, s.Memory.Update(ctx, "k", func(current json.RawMessage, ok bool) (any, error) {
		require.True(t, ok)
		return 2, nil
	}))

	clock.Advance(time.Minute)
	_, ok := s.Memory.Retrieve(ctx, "k")
	assert.False(t, ok)
}

func TestUserKey_RoundTrip(t *testing.T) {
	tests := []store.UserKey{
		{Owner: "alice", Field: "message_count"},
		{Owner: "a:b", Field: "c"},
		{Owner: "a", Field: "b:c"},
		{Owner: "user with spaces", Field: "last%interaction"},
	}
	for _, key := range tests {
		parsed, ok := store.ParseUserKey(key.String())
		require.True(t, ok, key.String())
		assert.Equal(t, key, parsed)
	}

	_, ok := store.ParseUserKey("other:alice:x")
	assert.False(t, ok)
	_, ok = store.ParseUserKey("user:alice")
	assert.False(t, ok)
}

func TestMemoryStore_UserContextIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.NewDB())

	require.NoError(t, s.Memory.StoreUserContext(ctx, "alice", "mood", "ok"))
	require.NoError(t, s.Memory.StoreUserContext(ctx, "alice:x", "mood", "bad"))
	require.NoError(t, s.Memory.StoreUserContext(ctx, "alic", "mood", "meh"))

	alice := s.Memory.GetUserContext(ctx, "alice")
	require.Len(t, alice, 1)
	assert.JSONEq(t, `"ok"`, string(alice["mood"]))

	other := s.Memory.GetUserContext(ctx, "alice:x")
	require.Len(t, other, 1)
	assert.JSONEq(t, `"bad"`, string(other["mood"]))

	assert.Empty(t, s.Memory.GetUserContext(ctx, "nobody"))
}

func TestMemoryStore_ReloadRestoresEntries(t *testing.T) {
	ctx := context.Background()
	driver := memory.NewDB()
	s := newTestStore(t, driver)
	require.NoError(t, s.Memory.Store(ctx, "k", []int{1, 2, 3}, 0))
	require.NoError(t, s.Close(ctx))

	reloaded := newTestStore(t, driver.Reopen())
	raw, ok := reloaded.Memory.Retrieve(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `[1,2,3]`, string(raw))
}
