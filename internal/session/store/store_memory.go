package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alumnus/internal/session/models"
	"alumnus/pkg/platform/sentinel"
)

// InMemory keeps refresh sessions in process for tests and single-instance
// development. Nothing is evicted on its own; the service rejects expired
// sessions after Consume.
type InMemory struct {
	mu       sync.Mutex
	sessions map[string]models.RefreshSession
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]models.RefreshSession)}
}

func (s *InMemory) Save(_ context.Context, session *models.RefreshSession, ttl time.Duration) error {
	if err := checkSave(session, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.Token]; exists {
		return fmt.Errorf("refresh token already stored: %w", sentinel.ErrConflict)
	}
	s.sessions[session.Token] = *session
	return nil
}

// Consume removes and returns the session for token.
func (s *InMemory) Consume(_ context.Context, token string) (*models.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	delete(s.sessions, token)
	return &session, nil
}

func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
