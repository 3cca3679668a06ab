package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/arenacore/cache"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// Service loads characters into sessions and writes them back.
type Service struct {
	Store    *Store
	Sessions *SessionManager
	Arena    *Arena
	cache    cache.Cache
	logger   *zap.Logger
}

// NewService wires the session lifecycle.
func NewService(store *Store, sessions *SessionManager, arena *Arena, c cache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Sessions: sessions, Arena: arena, cache: c, logger: logger}
}

// Open loads accountID's character charID into a fresh session owned by
// token. An existing session of the same character is saved and displaced.
func (svc *Service) Open(ctx context.Context, accountID, charID int64, token string) (*Session, error) {
	if old := svc.Sessions.Get(charID); old != nil {
		if old.AccountID != accountID {
			return nil, ErrCharacterNotFound
		}
		if err := svc.Close(ctx, old); err != nil {
			svc.logger.Warn("save of displaced session failed", zap.Int64("char_id", charID), zap.Error(err))
		}
	}
	c, row, err := svc.Store.Load(ctx, charID)
	if err != nil {
		return nil, err
	}
	if row.AccountID != accountID {
		return nil, ErrCharacterNotFound
	}
	s := NewSession(accountID, c, svc.Arena, svc.logger)
	s.SetToken(token)
	if err := RestoreCooldowns(ctx, svc.cache, s); err != nil {
		svc.logger.Warn("cooldown restore failed", zap.Int64("char_id", charID), zap.Error(err))
	}
	svc.Sessions.Register(s)
	return s, nil
}

// Save writes the session's character and cooldowns.
func (svc *Service) Save(ctx context.Context, s *Session) error {
	if err := svc.Store.Save(ctx, s.CharID, s.Record()); err != nil {
		return err
	}
	s.MarkSaved()
	if err := SaveCooldowns(ctx, svc.cache, s); err != nil {
		return fmt.Errorf("cooldown hand-off: %w", err)
	}
	return nil
}

// Close saves and unloads s.
func (svc *Service) Close(ctx context.Context, s *Session) error {
	err := svc.Save(ctx, s)
	svc.Sessions.Unregister(s)
	if token := s.Token(); token != "" {
		_ = svc.cache.Del(ctx, "session:"+token)
	}
	s.Close()
	return err
}

// CloseByID closes the session of charID.
func (svc *Service) CloseByID(ctx context.Context, charID int64) error {
	s := svc.Sessions.Get(charID)
	if s == nil {
		return ErrSessionNotFound
	}
	return svc.Close(ctx, s)
}

// SaveDirty saves every session changed since its last save and returns
// how many were written.
func (svc *Service) SaveDirty(ctx context.Context) int {
	n := 0
	for _, s := range svc.Sessions.All() {
		if !s.Dirty() {
			continue
		}
		if err := svc.Save(ctx, s); err != nil {
			svc.logger.Error("autosave failed", zap.Int64("char_id", s.CharID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// CloseAll saves and unloads every session (shutdown).
func (svc *Service) CloseAll(ctx context.Context) {
	sessions := svc.Sessions.All()
	svc.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		if err := svc.Close(ctx, s); err != nil {
			svc.logger.Error("save on shutdown failed", zap.Int64("char_id", s.CharID), zap.Error(err))
		}
	}
}
