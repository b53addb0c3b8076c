package session

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
	"github.com/unclecode/doc2talk/internal/llm"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	sess := &Session{
		ID: "20260801-120000-abcd",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "what is Foo?"},
			{Role: llm.RoleAssistant, Content: "Foo is a class."},
		},
		Contexts: []string{"# Documentation Context\n"},
	}
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.Messages, loaded.Messages)
	assert.Equal(t, sess.Contexts, loaded.Contexts)
	assert.NotEmpty(t, loaded.Created)
}

func TestStore_LoadUnknownID(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("missing")
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeSessionNotFound, docerrors.GetCode(err))
}

func TestStore_List(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(&Session{ID: "a", Messages: []llm.Message{{Role: "user", Content: "hi"}}}))
	require.NoError(t, store.Save(&Session{ID: "b"}))

	infos := store.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "b", infos[0].ID)
	assert.Equal(t, "a", infos[1].ID)
	assert.Equal(t, 1, infos[1].MessageCount)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(&Session{ID: "gone"}))

	require.NoError(t, store.Delete("gone"))

	_, err := store.Load("gone")
	assert.Equal(t, docerrors.ErrCodeSessionNotFound, docerrors.GetCode(err))
}

func TestStore_DeleteUnknownID(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.Delete("missing")
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeSessionNotFound, docerrors.GetCode(err))
}

func TestNewID_Format(t *testing.T) {
	id := NewID()
	assert.Regexp(t, regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{4}$`), id)
	assert.NotEqual(t, id, NewID())
}
