package usecase

import (
	"sync"

	"go.uber.org/zap"
)

// SessionRegistry owns the connection-to-session map. Lookup and deletion
// are atomic with respect to concurrent disconnects.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     SessionDeps
	logger   *zap.Logger
}

// NewSessionRegistry creates a registry handing every new session the same
// collaborator set.
func NewSessionRegistry(deps SessionDeps, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		deps:     deps,
		logger:   logger,
	}
}

// Create allocates a session for a new connection, wires its emitter, and
// issues the greeting turn. An existing session under the same connection
// ID is torn down first.
func (r *SessionRegistry) Create(connID, agentID string, emitter Emitter) *Session {
	session := NewSession(agentID, r.deps, emitter)

	r.mu.Lock()
	previous := r.sessions[connID]
	r.sessions[connID] = session
	count := len(r.sessions)
	r.mu.Unlock()

	if previous != nil {
		r.logger.Warn("Replacing existing session for connection",
			zap.String("connID", connID),
			zap.String("previousSessionID", previous.ID()))
		previous.Close()
	}

	r.logger.Info("Session created",
		zap.String("connID", connID),
		zap.String("sessionID", session.ID()),
		zap.Int("activeSessions", count))

	session.Greet()
	return session
}

// Get looks up the session bound to a connection.
func (r *SessionRegistry) Get(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[connID]
	return session, ok
}

// Remove tears down and forgets a connection's session. Calling it again
// for the same connection is a no-op, so disconnect and explicit end may
// race freely.
func (r *SessionRegistry) Remove(connID string) {
	r.mu.Lock()
	session, ok := r.sessions[connID]
	if ok {
		delete(r.sessions, connID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}
	session.Close()
	r.logger.Info("Session removed",
		zap.String("connID", connID),
		zap.String("sessionID", session.ID()),
		zap.Int("activeSessions", count))
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every live session, used during server shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for connID, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, connID)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
