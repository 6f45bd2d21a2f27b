package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"razdel/internal/feed"
	"razdel/internal/gateway"
	"razdel/internal/telemetry"
)

// Manager hands out one started Session per user and tears them all down on
// shutdown.
type Manager struct {
	mu       sync.Mutex
	gw       gateway.Gateway
	feed     feed.Feed
	audit    *telemetry.AuditEmitter
	log      *zap.Logger
	sessions map[string]*Session
}

// NewManager constructs a Manager.
func NewManager(gw gateway.Gateway, f feed.Feed, audit *telemetry.AuditEmitter, log *zap.Logger) *Manager {
	return &Manager{
		gw:       gw,
		feed:     f,
		audit:    audit,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, starting one on first use.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}

	s := New(m.gw, m.feed, m.audit, userID, m.log)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	m.sessions[userID] = s
	return s, nil
}

// End closes and forgets the user's session, if any.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll tears every session down. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
