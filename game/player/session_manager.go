package player

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of loaded character sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session // charID → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Register adds a session and returns the one it displaced, if any. The
// displaced session is closed (second login of the same character).
func (sm *SessionManager) Register(s *Session) *Session {
	sm.mu.Lock()
	old := sm.sessions[s.CharID]
	sm.sessions[s.CharID] = s
	sm.mu.Unlock()

	if old != nil && old != s {
		old.Close()
		sm.logger.Info("duplicate session displaced", zap.Int64("char_id", s.CharID))
	}
	sm.logger.Info("player session registered",
		zap.Int64("char_id", s.CharID),
		zap.Int64("account_id", s.AccountID))
	return old
}

// Unregister removes s if it is still the registered session for its
// character. Returns false when s was already displaced.
func (sm *SessionManager) Unregister(s *Session) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.sessions[s.CharID] != s {
		return false
	}
	delete(sm.sessions, s.CharID)
	sm.logger.Info("player session unregistered", zap.Int64("char_id", s.CharID))
	return true
}

// Get returns the session for a charID, or nil if not found.
func (sm *SessionManager) Get(charID int64) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[charID]
}

// IsOnline reports whether a character is currently loaded.
func (sm *SessionManager) IsOnline(charID int64) bool {
	return sm.Get(charID) != nil
}

// Count returns the number of loaded sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// ByAccount returns the sessions owned by accountID.
func (sm *SessionManager) ByAccount(accountID int64) []*Session {
	var out []*Session
	for _, s := range sm.All() {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out
}

// TickAll advances every session to now. Called by the frame ticker.
func (sm *SessionManager) TickAll(ctx context.Context, now time.Time) {
	for _, s := range sm.All() {
		s.Tick(ctx, now)
	}
}
