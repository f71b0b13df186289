// Package session keeps the form-filling sessions of the HTTP API in memory.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OpenNSW/formengine/internal/form/engine"
	"github.com/OpenNSW/formengine/internal/form/transport"
)

// ErrSessionNotFound is returned for unknown, abandoned or evicted sessions.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the active sessions. Each session is reachable only through its id; the least
// recently used one is evicted when the cache is full.
type Manager struct {
	forms     transport.DefinitionSource
	submitter engine.Submitter
	sessions  *lru.Cache[uuid.UUID, *engine.Session]
}

// NewManager creates a Manager holding at most size sessions.
// forms resolves definitions; submitter receives every finished session.
func NewManager(forms transport.DefinitionSource, submitter engine.Submitter, size int) (*Manager, error) {
	cache, err := lru.NewWithEvict(size, func(id uuid.UUID, s *engine.Session) {
		slog.Debug("session evicted", "sessionId", id, "formId", s.Definition().ID, "status", s.Status())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Manager{forms: forms, submitter: submitter, sessions: cache}, nil
}

// Start loads the form and opens a new session on its first stage.
func (m *Manager) Start(ctx context.Context, formID string) (*engine.Session, error) {
	def, err := m.forms.Fetch(ctx, formID)
	if err != nil {
		return nil, err
	}
	s := engine.NewSession(def, m.submitter)
	m.sessions.Add(s.ID(), s)
	slog.InfoContext(ctx, "session started", "sessionId", s.ID(), "formId", def.ID, "stages", len(def.Stages))
	return s, nil
}

func (m *Manager) Get(id uuid.UUID) (*engine.Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Abandon discards a session and its values. A session with a submission in flight is kept.
func (m *Manager) Abandon(ctx context.Context, id uuid.UUID) error {
	s, ok := m.sessions.Peek(id)
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status() == engine.StatusSubmitting {
		return engine.ErrSubmissionInProgress
	}
	m.sessions.Remove(id)
	slog.InfoContext(ctx, "session abandoned", "sessionId", id, "formId", s.Definition().ID)
	return nil
}

// Len is the number of sessions held.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
