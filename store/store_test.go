package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hrygo/mindcare/store"
	"github.com/hrygo/mindcare/store/db/memory"
)

func TestStore_PersistenceFailureDoesNotAbortMutation(t *testing.T) {
	ctx := context.Background()
	driver := &flakyDriver{DB: memory.NewDB()}
	observer := &recordingObserver{}
	s := newTestStore(t, driver, store.WithObserver(observer))

	session, err := s.Sessions.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	driver.setFailing(true)
	require.NoError(t, s.Sessions.AddMessage(ctx, session.ID, store.Message{Role: store.RoleUser, Content: "still here"}))
	require.NoError(t, s.Memory.Store(ctx, "k", "v", 0))

	got := s.Sessions.GetSession(ctx, session.ID)
	require.Len(t, got.Messages, 1, "in-memory state is kept when the write fails")
	assert.Equal(t, 2, observer.count())
	assert.Equal(t, 2, s.Pending())

	var perr *store.PersistenceError
	require.True(t, errors.As(error(observer.errs[0]), &perr))
	assert.Equal(t, store.CollectionSessions, perr.Collection)
	assert.Equal(t, session.ID, perr.ID)
	assert.Equal(t, store.OpPut, perr.Op)

	// Still failing: flush reports and keeps the documents dirty.
	assert.Error(t, s.Flush(ctx))
	assert.Equal(t, 2, s.Pending())

	driver.setFailing(false)
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 0, s.Pending())

	reloaded := newTestStore(t, driver.DB.Reopen())
	after := reloaded.Sessions.GetSession(ctx, session.ID)
	require.NotNil(t, after)
	assert.Len(t, after.Messages, 1)
	_, ok := reloaded.Memory.Retrieve(ctx, "k")
	assert.True(t, ok)
}

func TestStore_CloseFlushesPendingWrites(t *testing.T) {
	ctx := context.Background()
	driver := &flakyDriver{DB: memory.NewDB()}
	s := newTestStore(t, driver)

	driver.setFailing(true)
	require.NoError(t, s.Moods.LogMood(ctx, store.MoodEntry{UserID: "u", Mood: store.MoodGood}))
	require.Equal(t, 1, s.Pending())

	driver.setFailing(false)
	require.NoError(t, s.Close(ctx))
	// Second close is a no-op.
	require.NoError(t, s.Close(ctx))

	reloaded := newTestStore(t, driver.DB.Reopen())
	assert.Len(t, reloaded.Moods.GetUserMoodHistory(ctx, "u", 7), 1)
}

func TestStore_BackgroundFlusherRetries(t *testing.T) {
	ctx := context.Background()
	driver := &flakyDriver{DB: memory.NewDB()}
	s := newTestStore(t, driver, store.WithFlushInterval(10*time.Millisecond))
	defer s.Close(ctx)

	driver.setFailing(true)
	require.NoError(t, s.Memory.Store(ctx, "k", 1, 0))
	require.Equal(t, 1, s.Pending())

	driver.setFailing(false)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStore_ReloadStartsOneFlusher(t *testing.T) {
	ctx := context.Background()
	driver := memory.NewDB()
	s := newTestStore(t, driver, store.WithFlushInterval(time.Hour))
	require.NoError(t, s.Memory.Store(ctx, "k", 1, 0))

	running := goleak.IgnoreCurrent()
	require.NoError(t, s.Load(ctx))
	assert.NoError(t, goleak.Find(running), "a second Load must not start another flusher")

	_, ok := s.Memory.Retrieve(ctx, "k")
	assert.True(t, ok, "reload keeps persisted entries")
	require.NoError(t, s.Close(ctx))
}

func TestStore_LoadSkipsCorruptSessionDocuments(t *testing.T) {
	ctx := context.Background()
	driver := memory.NewDB()
	require.NoError(t, driver.Put(ctx, store.CollectionSessions, "broken", []byte("{not json")))
	observer := &recordingObserver{}

	s := newTestStore(t, driver, store.WithObserver(observer))
	assert.Nil(t, s.Sessions.GetSession(ctx, "broken"))
	assert.Equal(t, 1, observer.count())
}

func TestStore_CancelledContextStillPersists(t *testing.T) {
	driver := memory.NewDB()
	s := newTestStore(t, driver)
	session, err := s.Sessions.CreateSession(context.Background(), "user-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Sessions.AddMessage(ctx, session.ID, store.Message{Role: store.RoleUser, Content: "late"}))
	assert.Equal(t, 0, s.Pending())
}
