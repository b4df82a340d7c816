package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Stored messages are never modified.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an ordered conversation owned by one user.
type Session struct {
	ID        string         `json:"sessionId"`
	UserID    string         `json:"userId"`
	Messages  []Message      `json:"messages"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.Metadata != nil {
		c.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// SessionStore owns every session and persists each one as its own document.
type SessionStore struct {
	docs   *docStore
	locks  *keyLock
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionStore(driver Driver, o *options) *SessionStore {
	return &SessionStore{
		docs:     newDocStore(driver, CollectionSessions, o.logger, o.observer),
		locks:    newKeyLock(),
		logger:   o.logger,
		now:      o.now,
		sessions: make(map[string]*Session),
	}
}

func newSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), shortuuid.New())
}

// CreateSession registers an empty session for userID and persists it.
func (s *SessionStore) CreateSession(ctx context.Context, userID string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	now := s.now()
	session := &Session{
		ID:        newSessionID(now),
		UserID:    userID,
		Messages:  []Message{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	unlock := s.locks.Lock(session.ID)
	defer unlock()

	s.mu.Lock()
	s.sessions[session.ID] = session
	out := session.clone()
	s.mu.Unlock()

	s.persist(ctx, session.ID)
	return out, nil
}

// GetSession returns a copy of the session, or nil when it does not exist.
func (s *SessionStore) GetSession(_ context.Context, id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return session.clone()
}

// AddMessage appends msg to the session. A zero timestamp is set to now.
func (s *SessionStore) AddMessage(ctx context.Context, id string, msg Message) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	session.Messages = append(session.Messages, msg)
	s.touch(session)
	s.mu.Unlock()

	s.persist(ctx, id)
	return nil
}

// UpdateMetadata shallow-merges values into the session metadata.
func (s *SessionStore) UpdateMetadata(ctx context.Context, id string, values map[string]any) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.Metadata == nil {
		session.Metadata = make(map[string]any, len(values))
	}
	for k, v := range values {
		session.Metadata[k] = v
	}
	s.touch(session)
	s.mu.Unlock()

	s.persist(ctx, id)
	return nil
}

// GetRecentMessages returns up to count trailing messages in order.
func (s *SessionStore) GetRecentMessages(_ context.Context, id string, count int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok || count <= 0 {
		return []Message{}
	}
	start := len(session.Messages) - count
	if start < 0 {
		start = 0
	}
	return append([]Message{}, session.Messages[start:]...)
}

// GetAllSessions lists the sessions of userID, oldest first.
func (s *SessionStore) GetAllSessions(_ context.Context, userID string) []*Session {
	s.mu.RLock()
	out := make([]*Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteSession removes the session and its document. Unknown ids are ignored.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.docs.remove(ctx, id)
}

// touch advances UpdatedAt strictly. Caller holds s.mu.
func (s *SessionStore) touch(session *Session) {
	now := s.now()
	if !now.After(session.UpdatedAt) {
		now = session.UpdatedAt.Add(time.Nanosecond)
	}
	session.UpdatedAt = now
}

// persist rewrites the session document. Failures are reported by the
// docStore and retried on the next flush.
func (s *SessionStore) persist(ctx context.Context, id string) {
	_ = s.docs.write(ctx, id, s.snapshot(id))
}

func (s *SessionStore) snapshot(id string) snapshotFunc {
	return func() ([]byte, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		session, ok := s.sessions[id]
		if !ok {
			return nil, nil
		}
		return json.Marshal(session)
	}
}

func (s *SessionStore) load(ctx context.Context) error {
	docs, err := s.docs.load(ctx)
	if err != nil {
		return err
	}
	loaded := make(map[string]*Session, len(docs))
	for id, data := range docs {
		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			s.docs.report(&PersistenceError{Collection: CollectionSessions, ID: id, Op: OpDecode, Err: err})
			continue
		}
		if session.ID == "" {
			session.ID = id
		}
		if session.Messages == nil {
			session.Messages = []Message{}
		}
		loaded[session.ID] = &session
	}

	s.mu.Lock()
	s.sessions = loaded
	s.mu.Unlock()
	s.logger.Info("sessions loaded", "count", len(loaded))
	return nil
}

func (s *SessionStore) flush(ctx context.Context) error {
	return s.docs.flush(ctx)
}
