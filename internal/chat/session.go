// Package chat orchestrates conversations: per-question context
// decisions, context updates through the query engine, and response
// generation against the external LLM service.
package chat

import (
	"time"

	"github.com/unclecode/doc2talk/internal/chatctx"
	"github.com/unclecode/doc2talk/internal/llm"
	"github.com/unclecode/doc2talk/internal/session"
)

// Session is a live conversation: its history plus its context manager.
type Session struct {
	ID       string
	Messages []llm.Message
	IsNew    bool
	Created  string

	Contexts *chatctx.Manager

	maxHistory int
}

// NewSession creates a fresh session with a generated id.
func NewSession(maxHistory, maxContexts int) *Session {
	return &Session{
		ID:         session.NewID(),
		IsNew:      true,
		Created:    time.Now().Format(time.RFC3339),
		Contexts:   chatctx.NewManager(maxContexts),
		maxHistory: maxHistory,
	}
}

// ResumeSession rebuilds a live session from its stored state.
func ResumeSession(stored *session.Session, maxHistory, maxContexts int) *Session {
	s := &Session{
		ID:         stored.ID,
		Messages:   stored.Messages,
		Created:    stored.Created,
		Contexts:   chatctx.NewManager(maxContexts),
		maxHistory: maxHistory,
	}
	s.Contexts.Restore(stored.Contexts)
	s.truncate()
	return s
}

// AddMessage appends a message, truncating to the most recent maxHistory
// entries.
func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, llm.Message{Role: role, Content: content})
	s.truncate()
}

func (s *Session) truncate() {
	if s.maxHistory > 0 && len(s.Messages) > s.maxHistory {
		s.Messages = s.Messages[len(s.Messages)-s.maxHistory:]
	}
}

// LastUserQuestion returns the most recent prior user message content.
func (s *Session) LastUserQuestion() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Recent returns up to the last n messages.
func (s *Session) Recent(n int) []llm.Message {
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Stored converts the live session into its persistable form.
func (s *Session) Stored() *session.Session {
	return &session.Session{
		ID:       s.ID,
		Messages: s.Messages,
		Contexts: s.Contexts.Contexts(),
		Created:  s.Created,
	}
}
