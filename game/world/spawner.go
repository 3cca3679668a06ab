package world

import (
	"sync"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
	"go.uber.org/zap"
)

// SpawnConfig describes an enemy spawn point.
type SpawnConfig struct {
	Template   string      `json:"template" mapstructure:"template"`
	Position   combat.Vec3 `json:"position" mapstructure:"position"`
	MaxCount   int         `json:"max_count" mapstructure:"max_count"`
	RespawnSec int         `json:"respawn_sec" mapstructure:"respawn_sec"`
	Spacing    float64     `json:"spacing" mapstructure:"spacing"` // X offset between members of a group
}

// DefaultSpawns returns a small arena layout.
func DefaultSpawns() []SpawnConfig {
	return []SpawnConfig{
		{Template: "slime", Position: combat.Vec3{X: -5, Z: -8}, MaxCount: 3, RespawnSec: 10, Spacing: 3},
		{Template: "goblin", Position: combat.Vec3{X: 6, Z: -12}, MaxCount: 2, RespawnSec: 20, Spacing: 4},
	}
}

// Spawner keeps each spawn point populated: corpses are cleared once their
// respawn delay has passed and the group is topped up to MaxCount.
type Spawner struct {
	reg       *Registry
	templates map[string]EnemyTemplate
	configs   []SpawnConfig
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewSpawner creates a Spawner filling reg.
func NewSpawner(reg *Registry, templates []EnemyTemplate, configs []SpawnConfig, logger *zap.Logger) *Spawner {
	tm := make(map[string]EnemyTemplate, len(templates))
	for _, t := range templates {
		tm[t.ID] = t
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spawner{reg: reg, templates: tm, configs: configs, logger: logger}
}

// Template returns the enemy template with id.
func (sp *Spawner) Template(id string) (EnemyTemplate, bool) {
	t, ok := sp.templates[id]
	return t, ok
}

// SpawnAll fills every spawn point (called at start-up).
func (sp *Spawner) SpawnAll() int {
	return sp.CheckRespawns(time.Now())
}

// CheckRespawns clears expired corpses and refills spawn points. Returns
// the number of enemies spawned.
func (sp *Spawner) CheckRespawns(now time.Time) int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	spawned := 0
	for i, cfg := range sp.configs {
		spawned += sp.spawnGroup(i, cfg, now)
	}
	return spawned
}

func (sp *Spawner) spawnGroup(idx int, cfg SpawnConfig, now time.Time) int {
	t, ok := sp.templates[cfg.Template]
	if !ok {
		sp.logger.Warn("unknown enemy template", zap.String("template", cfg.Template))
		return 0
	}
	delay := time.Duration(cfg.RespawnSec) * time.Second
	occupied := 0
	for _, e := range sp.reg.All() {
		if e.SpawnID != idx {
			continue
		}
		if e.IsDead() && !now.Before(e.DiedAt().Add(delay)) {
			sp.reg.Remove(e.InstID)
			continue
		}
		occupied++
	}
	n := 0
	for occupied+n < cfg.MaxCount {
		pos := cfg.Position.Add(combat.Vec3{X: float64(occupied+n) * cfg.Spacing})
		e := NewEnemy(t, idx, pos)
		sp.reg.Add(e)
		n++
	}
	if n > 0 {
		sp.logger.Debug("enemies spawned", zap.String("template", t.ID), zap.Int("count", n))
	}
	return n
}
