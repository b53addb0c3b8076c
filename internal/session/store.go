// Package session persists chat sessions as one JSON file per session id
// under the sessions directory.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
	"github.com/unclecode/doc2talk/internal/llm"
)

// Session is the persisted state of one conversation.
type Session struct {
	ID       string        `json:"id"`
	Messages []llm.Message `json:"messages"`
	Contexts []string      `json:"contexts"`
	Created  string        `json:"created"`
}

// Info summarizes a stored session for listing.
type Info struct {
	ID           string `json:"id"`
	Created      string `json:"created"`
	MessageCount int    `json:"message_count"`
}

// NewID generates a session id of the form YYYYMMDD-HHMMSS-xxxx.
func NewID() string {
	return fmt.Sprintf("%s-%s",
		time.Now().Format("20060102-150405"),
		uuid.NewString()[:4])
}

// Store reads and writes session files in a directory. Writes take a
// per-session file lock: the store is single-writer by session id.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the session atomically under an exclusive file lock.
func (s *Store) Save(sess *Session) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to create sessions directory", err)
	}
	if sess.Created == "" {
		sess.Created = time.Now().Format(time.RFC3339)
	}

	lock := flock.New(s.path(sess.ID) + ".lock")
	if err := lock.Lock(); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to lock session file", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.Marshal(sess)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to encode session", err)
	}
	tmp := s.path(sess.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to write session file", err)
	}
	if err := os.Rename(tmp, s.path(sess.ID)); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to replace session file", err)
	}
	return nil
}

// Load reads a session by id.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, docerrors.SessionNotFound(id)
	}
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInternal, "failed to read session file", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInternal, "failed to decode session file", err)
	}
	return &sess, nil
}

// List returns summaries of all stored sessions, newest id first.
// Unreadable files are skipped.
func (s *Store) List() []Info {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:           sess.ID,
			Created:      sess.Created,
			MessageCount: len(sess.Messages),
		})
	}

	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
	return infos
}

// Delete removes a session file. Returns SessionNotFound for unknown ids.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return docerrors.SessionNotFound(id)
	}
	if err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to delete session file", err)
	}
	_ = os.Remove(s.path(id) + ".lock")
	return nil
}
