package store

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemoryEntry is a keyed value with optional expiry.
type MemoryEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

func (e *MemoryEntry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

func (e *MemoryEntry) clone() MemoryEntry {
	c := *e
	c.Value = append(json.RawMessage(nil), e.Value...)
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

// UpdateFunc computes a new value from the current one. ok is false when
// the key is absent or expired.
type UpdateFunc func(current json.RawMessage, ok bool) (any, error)

// MemoryStore is a key-value store with per-entry TTL. All entries share a
// single document.
type MemoryStore struct {
	docs   *docStore
	locks  *keyLock
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*MemoryEntry
}

func newMemoryStore(driver Driver, o *options) *MemoryStore {
	return &MemoryStore{
		docs:    newDocStore(driver, CollectionMemories, o.logger, o.observer),
		locks:   newKeyLock(),
		logger:  o.logger,
		now:     o.now,
		entries: make(map[string]*MemoryEntry),
	}
}

// Store sets key to value. A positive ttl makes the entry expire.
func (m *MemoryStore) Store(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(key)
	defer unlock()

	m.set(key, raw, ttl)
	m.persist(ctx)
	return nil
}

// Retrieve returns the value of key. Expired entries are evicted.
func (m *MemoryStore) Retrieve(ctx context.Context, key string) (json.RawMessage, bool) {
	now := m.now()
	m.mu.RLock()
	entry, ok := m.entries[key]
	if ok && !entry.expired(now) {
		value := append(json.RawMessage(nil), entry.Value...)
		m.mu.RUnlock()
		return value, true
	}
	m.mu.RUnlock()

	if ok {
		m.evict(ctx, []string{key})
	}
	return nil, false
}

// Search returns the live entries whose key or serialized value contains
// pattern, ordered by key. Expired entries found on the way are evicted.
func (m *MemoryStore) Search(ctx context.Context, pattern string) []MemoryEntry {
	now := m.now()
	needle := []byte(pattern)
	results := make([]MemoryEntry, 0)
	var expired []string

	m.mu.RLock()
	for key, entry := range m.entries {
		if entry.expired(now) {
			expired = append(expired, key)
			continue
		}
		if strings.Contains(key, pattern) || bytes.Contains(entry.Value, needle) {
			results = append(results, entry.clone())
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.evict(ctx, expired)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) {
	unlock := m.locks.Lock(key)
	defer unlock()

	m.mu.Lock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()
	if ok {
		m.persist(ctx)
	}
}

// Clear removes every entry.
func (m *MemoryStore) Clear(ctx context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]*MemoryEntry)
	m.mu.Unlock()
	m.persist(ctx)
}

// Update runs a read-modify-write on key under its lock. An existing expiry
// is kept.
func (m *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	now := m.now()
	var current json.RawMessage
	var ttl time.Duration
	m.mu.RLock()
	entry, ok := m.entries[key]
	if ok && entry.expired(now) {
		ok = false
	}
	if ok {
		current = append(json.RawMessage(nil), entry.Value...)
		if entry.ExpiresAt != nil {
			ttl = entry.ExpiresAt.Sub(now)
		}
	}
	m.mu.RUnlock()

	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	raw, err := encodeValue(next)
	if err != nil {
		return err
	}
	m.set(key, raw, ttl)
	m.persist(ctx)
	return nil
}

// Increment adds one to the integer stored at key, treating a missing
// value as zero, and returns the new value.
func (m *MemoryStore) Increment(ctx context.Context, key string) (int64, error) {
	var n int64
	err := m.Update(ctx, key, func(current json.RawMessage, ok bool) (any, error) {
		n = 0
		if ok {
			if err := json.Unmarshal(current, &n); err != nil {
				return nil, errors.Wrapf(err, "memory value %q is not an integer", key)
			}
		}
		n++
		return n, nil
	})
	return n, err
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RetrieveAs decodes the value of key into T.
func RetrieveAs[T any](ctx context.Context, m *MemoryStore, key string) (T, bool, error) {
	var out T
	raw, ok := m.Retrieve(ctx, key)
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, true, errors.Wrapf(err, "failed to decode memory value %q", key)
	}
	return out, true, nil
}

func (m *MemoryStore) set(key string, raw json.RawMessage, ttl time.Duration) {
	now := m.now()
	entry := &MemoryEntry{Key: key, Value: raw, Timestamp: now}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

// evict drops keys that are still expired and persists if any were removed.
func (m *MemoryStore) evict(ctx context.Context, keys []string) {
	now := m.now()
	removed := 0
	m.mu.Lock()
	for _, key := range keys {
		if entry, ok := m.entries[key]; ok && entry.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	m.mu.Unlock()
	if removed > 0 {
		m.logger.Debug("memory entries expired", "count", removed)
		m.persist(ctx)
	}
}

func (m *MemoryStore) persist(ctx context.Context) {
	_ = m.docs.write(ctx, memoriesDocumentID, m.snapshot)
}

func (m *MemoryStore) snapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*MemoryEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return marshalVerbatim(list)
}

func (m *MemoryStore) load(ctx context.Context) error {
	docs, err := m.docs.load(ctx)
	if err != nil {
		return err
	}
	loaded := make(map[string]*MemoryEntry)
	if data, ok := docs[memoriesDocumentID]; ok {
		var list []*MemoryEntry
		if err := json.Unmarshal(data, &list); err != nil {
			m.docs.report(&PersistenceError{Collection: CollectionMemories, ID: memoriesDocumentID, Op: OpDecode, Err: err})
		}
		for _, entry := range list {
			if entry == nil || entry.Key == "" {
				continue
			}
			loaded[entry.Key] = entry
		}
	}

	m.mu.Lock()
	m.entries = loaded
	m.mu.Unlock()
	m.logger.Info("memories loaded", "count", len(loaded))
	return nil
}

func (m *MemoryStore) flush(ctx context.Context) error {
	return m.docs.flush(ctx)
}

func encodeValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("memory value is not valid JSON")
		}
		return append(json.RawMessage(nil), raw...), nil
	}
	raw, err := marshalVerbatim(value)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode memory value")
	}
	return raw, nil
}

// marshalVerbatim is json.Marshal without HTML escaping, so &, < and >
// stay searchable as written.
func marshalVerbatim(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
