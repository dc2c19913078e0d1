package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// DisplaySessionRepository is an in-memory domain.DisplaySessionRepository
type DisplaySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.DisplaySession
}

// NewDisplaySessionRepository creates an empty repository
func NewDisplaySessionRepository() *DisplaySessionRepository {
	return &DisplaySessionRepository{sessions: make(map[string]*domain.DisplaySession)}
}

// FindByID returns a copy of the session
func (r *DisplaySessionRepository) FindByID(_ context.Context, sessionID string) (*domain.DisplaySession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: display session %s", domain.ErrNotFound, sessionID)
	}
	return copySession(s), nil
}

// Save upserts the session; version 0 inserts
func (r *DisplaySessionRepository) Save(_ context.Context, s *domain.DisplaySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[s.SessionID]
	switch {
	case !exists && s.Version != 0:
		return fmt.Errorf("%w: display session %s", domain.ErrNotFound, s.SessionID)
	case exists && stored.Version != s.Version:
		return fmt.Errorf("%w: display session %s is at version %d", domain.ErrConflict, s.SessionID, stored.Version)
	}

	s.Version++
	r.sessions[s.SessionID] = copySession(s)
	return nil
}

func copySession(s *domain.DisplaySession) *domain.DisplaySession {
	c := *s
	c.Filters = append([]string(nil), s.Filters...)
	return &c
}
