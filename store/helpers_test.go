package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/mindcare/store"
	"github.com/hrygo/mindcare/store/db/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// flakyDriver fails writes while failing is set.
type flakyDriver struct {
	*memory.DB

	mu      sync.Mutex
	failing bool
	puts    int
}

func (f *flakyDriver) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyDriver) Put(ctx context.Context, collection, id string, data []byte) error {
	f.mu.Lock()
	f.puts++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.DB.Put(ctx, collection, id, data)
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []*store.PersistenceError
}

func (r *recordingObserver) ObservePersistenceError(err *store.PersistenceError) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func newTestStore(t *testing.T, driver store.Driver, opts ...store.Option) *store.Store {
	t.Helper()
	s := store.New(driver, opts...)
	require.NoError(t, s.Load(context.Background()))
	return s
}
