package player

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kasuganosora/arenacore/cache"
)

// CooldownKey is the cache hash holding a character's running cooldowns
// as skill id → ready-at unix milliseconds.
func CooldownKey(charID int64) string {
	return fmt.Sprintf("player:%d:skill_cd", charID)
}

// SaveCooldowns writes the session's running cooldowns to the cache,
// replacing what was there.
func SaveCooldowns(ctx context.Context, c cache.Cache, s *Session) error {
	key := CooldownKey(s.CharID)
	snap := s.cooldownSnapshot(time.Now())
	if err := c.Del(ctx, key); err != nil {
		return fmt.Errorf("clear cooldowns: %w", err)
	}
	for id, at := range snap {
		if err := c.HSet(ctx, key, id, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
			return fmt.Errorf("save cooldown %s: %w", id, err)
		}
	}
	return nil
}

// RestoreCooldowns loads cooldowns saved by SaveCooldowns. Malformed and
// elapsed entries are dropped from the hash.
func RestoreCooldowns(ctx context.Context, c cache.Cache, s *Session) error {
	key := CooldownKey(s.CharID)
	fields, err := c.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("load cooldowns: %w", err)
	}
	now := time.Now()
	readyAt := make(map[string]time.Time, len(fields))
	var stale []string
	for id, v := range fields {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || !time.UnixMilli(ms).After(now) {
			stale = append(stale, id)
			continue
		}
		readyAt[id] = time.UnixMilli(ms)
	}
	if len(stale) > 0 {
		if err := c.HDel(ctx, key, stale...); err != nil {
			return fmt.Errorf("prune cooldowns: %w", err)
		}
	}
	s.restoreCooldowns(readyAt, now)
	return nil
}
