package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// snapshotFunc encodes the current state of one document. A nil payload
// means the document no longer exists and the pending write is dropped.
type snapshotFunc func() ([]byte, error)

// docStore applies the persistence discipline shared by every store: whole
// document rewrites, writes serialized per document id, failed writes kept
// in a dirty set until a later flush succeeds.
type docStore struct {
	driver     Driver
	collection string
	logger     *slog.Logger
	observer   PersistenceObserver
	locks      *keyLock

	mu    sync.Mutex
	dirty map[string]snapshotFunc // nil value marks a pending delete
}

func newDocStore(driver Driver, collection string, logger *slog.Logger, observer PersistenceObserver) *docStore {
	return &docStore{
		driver:     driver,
		collection: collection,
		logger:     logger,
		observer:   observer,
		locks:      newKeyLock(),
		dirty:      make(map[string]snapshotFunc),
	}
}

// write persists the document produced by snapshot. The snapshot is taken
// while the document lock is held, so a newer state is never overwritten
// by an older one. Writes outlive the caller's cancellation.
func (d *docStore) write(ctx context.Context, id string, snapshot snapshotFunc) error {
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.writeLocked(context.WithoutCancel(ctx), id, snapshot)
}

func (d *docStore) writeLocked(ctx context.Context, id string, snapshot snapshotFunc) error {
	data, err := snapshot()
	if err != nil {
		return d.fail(OpEncode, id, err)
	}
	if data == nil {
		d.clearDirty(id)
		return nil
	}
	if err := d.driver.Put(ctx, d.collection, id, data); err != nil {
		d.markDirty(id, snapshot)
		return d.fail(OpPut, id, err)
	}
	d.clearDirty(id)
	return nil
}

func (d *docStore) remove(ctx context.Context, id string) error {
	unlock := d.locks.Lock(id)
	defer unlock()
	return d.removeLocked(context.WithoutCancel(ctx), id)
}

func (d *docStore) removeLocked(ctx context.Context, id string) error {
	if err := d.driver.Delete(ctx, d.collection, id); err != nil {
		d.markDirty(id, nil)
		return d.fail(OpDelete, id, err)
	}
	d.clearDirty(id)
	return nil
}

// load returns every document of the collection.
func (d *docStore) load(ctx context.Context) (map[string][]byte, error) {
	docs, err := d.driver.List(ctx, d.collection)
	if err != nil {
		return nil, d.fail(OpList, "", err)
	}
	return docs, nil
}

// flush retries every pending write once.
func (d *docStore) flush(ctx context.Context) error {
	d.mu.Lock()
	ids := make([]string, 0, len(d.dirty))
	for id := range d.dirty {
		ids = append(ids, id)
	}
	d.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := d.flushOne(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *docStore) flushOne(ctx context.Context, id string) error {
	unlock := d.locks.Lock(id)
	defer unlock()

	d.mu.Lock()
	snapshot, ok := d.dirty[id]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	if snapshot == nil {
		return d.removeLocked(ctx, id)
	}
	return d.writeLocked(ctx, id, snapshot)
}

func (d *docStore) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dirty)
}

func (d *docStore) markDirty(id string, snapshot snapshotFunc) {
	d.mu.Lock()
	d.dirty[id] = snapshot
	d.mu.Unlock()
}

func (d *docStore) clearDirty(id string) {
	d.mu.Lock()
	delete(d.dirty, id)
	d.mu.Unlock()
}

// fail logs and reports a persistence failure.
func (d *docStore) fail(op, id string, err error) *PersistenceError {
	perr := &PersistenceError{Collection: d.collection, ID: id, Op: op, Err: err}
	d.report(perr)
	return perr
}

func (d *docStore) report(perr *PersistenceError) {
	d.logger.Error("store persistence failed",
		"driver", d.driver.Name(),
		"collection", perr.Collection,
		"id", perr.ID,
		"op", perr.Op,
		"error", perr.Err,
	)
	if d.observer != nil {
		d.observer.ObservePersistenceError(perr)
	}
}
