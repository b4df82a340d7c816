// Package memory is a process-local document driver for tests and demo mode.
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/mindcare/store"
)

type DB struct {
	mu     sync.RWMutex
	docs   map[string]map[string][]byte
	closed bool
}

func NewDB() *DB {
	return &DB{docs: make(map[string]map[string][]byte)}
}

func (d *DB) Name() string {
	return "memory"
}

func (d *DB) Migrate(context.Context) error {
	return nil
}

func (d *DB) Get(_ context.Context, collection, id string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, errors.New("memory driver closed")
	}
	data, ok := d.docs[collection][id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (d *DB) Put(_ context.Context, collection, id string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("memory driver closed")
	}
	docs, ok := d.docs[collection]
	if !ok {
		docs = make(map[string][]byte)
		d.docs[collection] = docs
	}
	docs[id] = append([]byte(nil), data...)
	return nil
}

func (d *DB) Delete(_ context.Context, collection, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("memory driver closed")
	}
	delete(d.docs[collection], id)
	return nil
}

func (d *DB) List(_ context.Context, collection string) (map[string][]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, errors.New("memory driver closed")
	}
	out := make(map[string][]byte, len(d.docs[collection]))
	for id, data := range d.docs[collection] {
		out[id] = append([]byte(nil), data...)
	}
	return out, nil
}

// Close marks the driver closed. Documents stay readable through Reopen so
// tests can simulate a restart.
func (d *DB) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Reopen returns a fresh driver sharing the documents written so far.
func (d *DB) Reopen() *DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	docs := make(map[string]map[string][]byte, len(d.docs))
	for collection, m := range d.docs {
		cp := make(map[string][]byte, len(m))
		for id, data := range m {
			cp[id] = append([]byte(nil), data...)
		}
		docs[collection] = cp
	}
	return &DB{docs: docs}
}
