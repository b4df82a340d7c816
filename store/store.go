package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Store bundles the session, memory and mood stores over one Driver.
type Store struct {
	driver Driver
	logger *slog.Logger

	Sessions *SessionStore
	Memory   *MemoryStore
	Moods    *MoodTracker

	flushInterval time.Duration
	stop          chan struct{}
	wg            sync.WaitGroup
	flusherOnce   sync.Once
	closeOnce     sync.Once
}

type options struct {
	logger        *slog.Logger
	observer      PersistenceObserver
	now           func() time.Time
	flushInterval time.Duration
}

// Option configures a Store.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver registers a hook for persistence failures.
func WithObserver(observer PersistenceObserver) Option {
	return func(o *options) { o.observer = observer }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFlushInterval sets how often failed writes are retried in the
// background. Zero disables the flusher.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.flushInterval = d }
}

// New creates a Store. Call Load before serving traffic.
func New(driver Driver, opts ...Option) *Store {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "store", "driver", driver.Name())

	return &Store{
		driver:        driver,
		logger:        o.logger,
		Sessions:      newSessionStore(driver, o),
		Memory:        newMemoryStore(driver, o),
		Moods:         newMoodTracker(driver, o),
		flushInterval: o.flushInterval,
		stop:          make(chan struct{}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Load migrates the backend and reads every store concurrently, then starts
// the background flusher. Calling it again reloads the stores; the flusher
// is started only once.
func (s *Store) Load(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Sessions.load(gctx) })
	g.Go(func() error { return s.Memory.load(gctx) })
	g.Go(func() error { return s.Moods.load(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	if s.flushInterval > 0 {
		s.flusherOnce.Do(func() {
			s.wg.Add(1)
			go s.runFlusher()
		})
	}
	return nil
}

// Flush retries every pending write once.
func (s *Store) Flush(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.Sessions.flush(ctx) })
	g.Go(func() error { return s.Memory.flush(ctx) })
	g.Go(func() error { return s.Moods.flush(ctx) })
	return g.Wait()
}

// Pending reports how many documents still wait for a successful write.
func (s *Store) Pending() int {
	return s.Sessions.docs.pending() + s.Memory.docs.pending() + s.Moods.docs.pending()
}

// Close stops the flusher, flushes pending writes and closes the driver.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		flushErr := s.Flush(ctx)
		if flushErr != nil {
			s.logger.Error("pending writes lost on close", "pending", s.Pending(), "error", flushErr)
		}
		err = errors.Join(flushErr, s.driver.Close())
	})
	return err
}

func (s *Store) runFlusher() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.Pending() == 0 {
				continue
			}
			if err := s.Flush(context.Background()); err != nil {
				s.logger.Warn("background flush incomplete", "pending", s.Pending(), "error", err)
			}
		}
	}
}
