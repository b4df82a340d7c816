package store

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

const userKeyPrefix = "user:"

// UserKey addresses a per-user memory field. Both components are escaped,
// so owners and fields may contain the separator.
type UserKey struct {
	Owner string
	Field string
}

func (k UserKey) String() string {
	return userNamespace(k.Owner) + url.QueryEscape(k.Field)
}

// ParseUserKey decodes a key produced by UserKey.String.
func ParseUserKey(s string) (UserKey, bool) {
	rest, ok := strings.CutPrefix(s, userKeyPrefix)
	if !ok {
		return UserKey{}, false
	}
	owner, field, ok := strings.Cut(rest, ":")
	if !ok {
		return UserKey{}, false
	}
	var err error
	var k UserKey
	if k.Owner, err = url.QueryUnescape(owner); err != nil {
		return UserKey{}, false
	}
	if k.Field, err = url.QueryUnescape(field); err != nil {
		return UserKey{}, false
	}
	return k, true
}

func userNamespace(owner string) string {
	return userKeyPrefix + url.QueryEscape(owner) + ":"
}

// StoreUserContext sets one field of the user's memory namespace.
func (m *MemoryStore) StoreUserContext(ctx context.Context, userID, field string, value any) error {
	return m.Store(ctx, UserKey{Owner: userID, Field: field}.String(), value, 0)
}

// GetUserContext returns every live field stored for userID.
func (m *MemoryStore) GetUserContext(ctx context.Context, userID string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for _, entry := range m.Search(ctx, userNamespace(userID)) {
		key, ok := ParseUserKey(entry.Key)
		if !ok || key.Owner != userID {
			continue
		}
		out[key.Field] = entry.Value
	}
	return out
}
