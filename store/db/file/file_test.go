package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/mindcare/store"
)

func TestFileDB_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	db, err := NewDB(root)
	require.NoError(t, err)

	_, err = db.Get(ctx, "sessions", "missing")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)

	require.NoError(t, db.Put(ctx, "sessions", "session_1_abc", []byte(`{"a":1}`)))
	require.NoError(t, db.Put(ctx, "sessions", "session_1_abc", []byte(`{"a":2}`)))
	require.NoError(t, db.Put(ctx, "sessions", "odd/id", []byte(`{}`)))

	data, err := db.Get(ctx, "sessions", "session_1_abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))

	docs, err := db.List(ctx, "sessions")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Contains(t, docs, "odd/id")

	info, err := os.Stat(filepath.Join(root, "sessions", "session_1_abc.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())

	require.NoError(t, db.Delete(ctx, "sessions", "session_1_abc"))
	require.NoError(t, db.Delete(ctx, "sessions", "session_1_abc"))
	docs, err = db.List(ctx, "sessions")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFileDB_ListMissingCollection(t *testing.T) {
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	docs, err := db.List(context.Background(), "moods")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFileDB_NoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	db, err := NewDB(root)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Put(ctx, "memories", "memories", []byte(`[]`)))
	}
	entries, err := os.ReadDir(filepath.Join(root, "memories"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "memories.json", entries[0].Name())
}

func TestFileDB_BackedStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	db, err := NewDB(root)
	require.NoError(t, err)

	s := store.New(db)
	require.NoError(t, s.Load(ctx))
	session, err := s.Sessions.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.Sessions.AddMessage(ctx, session.ID, store.Message{Role: store.RoleUser, Content: "hello"}))
	require.NoError(t, s.Memory.StoreUserContext(ctx, "user-1", store.UserFieldMessageCount, 1))
	require.NoError(t, s.Close(ctx))

	db2, err := NewDB(root)
	require.NoError(t, err)
	s2 := store.New(db2)
	require.NoError(t, s2.Load(ctx))
	got := s2.Sessions.GetSession(ctx, session.ID)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Len(t, s2.Memory.GetUserContext(ctx, "user-1"), 1)
}
