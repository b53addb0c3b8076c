// Package chatctx maintains the bounded list of retrieved contexts for a
// conversation and the replace/append policies over it.
package chatctx

import (
	"strings"
)

// Mode is a context update policy.
type Mode string

const (
	// ModeReplace discards existing contexts in favor of the new one.
	ModeReplace Mode = "replace"
	// ModeAppend adds the new context, keeping the most recent ones.
	ModeAppend Mode = "append"
	// ModeNone leaves the contexts unchanged.
	ModeNone Mode = "none"
)

// DefaultMaxContexts is the default bound on retained contexts.
const DefaultMaxContexts = 5

// tokensPerWord is the rough token estimate per whitespace word. A real
// tokenizer is deliberately not a dependency here.
const tokensPerWord = 1.5

// Status summarizes the manager state for display.
type Status struct {
	ContextCount int    `json:"context_count"`
	TokenCount   int    `json:"token_count"`
	LastAction   string `json:"last_action"`
}

// Manager holds an ordered sequence of at most maxContexts rendered
// contexts.
type Manager struct {
	contexts    []string
	lastAction  Mode
	maxContexts int
}

// NewManager creates a manager bounded to maxContexts entries.
func NewManager(maxContexts int) *Manager {
	if maxContexts <= 0 {
		maxContexts = DefaultMaxContexts
	}
	return &Manager{lastAction: ModeNone, maxContexts: maxContexts}
}

// Update applies newContext according to mode.
func (m *Manager) Update(newContext string, mode Mode) {
	m.lastAction = mode
	switch mode {
	case ModeReplace:
		m.contexts = []string{newContext}
	case ModeAppend:
		m.contexts = append(m.contexts, newContext)
		if len(m.contexts) > m.maxContexts {
			m.contexts = m.contexts[len(m.contexts)-m.maxContexts:]
		}
	}
}

// CurrentContext returns the contexts joined by a blank line.
func (m *Manager) CurrentContext() string {
	return strings.Join(m.contexts, "\n\n")
}

// TokenCount estimates the token count of the current context.
func (m *Manager) TokenCount() int {
	words := len(strings.Fields(m.CurrentContext()))
	return int(float64(words) * tokensPerWord)
}

// LastAction returns the mode of the most recent update.
func (m *Manager) LastAction() Mode {
	return m.lastAction
}

// Status returns the current counts and a human label for the last
// action.
func (m *Manager) Status() Status {
	labels := map[Mode]string{
		ModeReplace: "New Context",
		ModeAppend:  "Additional Context",
		ModeNone:    "No Context Added",
	}
	return Status{
		ContextCount: len(m.contexts),
		TokenCount:   m.TokenCount(),
		LastAction:   labels[m.lastAction],
	}
}

// Contexts returns a copy of the retained contexts, oldest first.
func (m *Manager) Contexts() []string {
	out := make([]string, len(m.contexts))
	copy(out, m.contexts)
	return out
}

// Restore replaces the retained contexts, e.g. when resuming a session.
// The bound is enforced; the last action is left untouched.
func (m *Manager) Restore(contexts []string) {
	if len(contexts) > m.maxContexts {
		contexts = contexts[len(contexts)-m.maxContexts:]
	}
	m.contexts = append([]string(nil), contexts...)
}
