package world

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
)

// instIDCounter generates unique enemy instance IDs.
var instIDCounter int64

func nextInstID() string {
	return "enemy_" + strconv.FormatInt(atomic.AddInt64(&instIDCounter, 1), 10)
}

// EnemyTemplate describes a kind of enemy.
type EnemyTemplate struct {
	ID         string  `json:"id" mapstructure:"id"`
	Name       string  `json:"name" mapstructure:"name"`
	MaxHealth  float64 `json:"max_health" mapstructure:"max_health"`
	LootChance float64 `json:"loot_chance" mapstructure:"loot_chance"` // 0..1, rolled once per kill
}

// DefaultTemplates returns the built-in enemy kinds.
func DefaultTemplates() []EnemyTemplate {
	return []EnemyTemplate{
		{ID: "slime", Name: "Slime", MaxHealth: 30, LootChance: 0.5},
		{ID: "goblin", Name: "Goblin", MaxHealth: 60, LootChance: 0.3},
	}
}

// Enemy is the runtime state of a live enemy instance. It satisfies
// combat.Target; every method is safe for concurrent use.
type Enemy struct {
	InstID   string
	SpawnID  int
	Template EnemyTemplate

	mu     sync.Mutex
	pos    combat.Vec3
	health float64
	dead   bool
	diedAt time.Time
}

// NewEnemy creates a full-health enemy from a template.
func NewEnemy(t EnemyTemplate, spawnID int, pos combat.Vec3) *Enemy {
	return &Enemy{
		InstID:   nextInstID(),
		SpawnID:  spawnID,
		Template: t,
		pos:      pos,
		health:   t.MaxHealth,
	}
}

func (e *Enemy) TargetID() string { return e.InstID }

func (e *Enemy) Position() combat.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *Enemy) SetPosition(p combat.Vec3) {
	e.mu.Lock()
	e.pos = p
	e.mu.Unlock()
}

func (e *Enemy) Health() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

func (e *Enemy) IsDead() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dead
}

// ApplyDamage subtracts raw damage. Health may go negative; death is only
// recorded by MarkDead.
func (e *Enemy) ApplyDamage(amount float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health -= amount
	return e.health
}

// MarkDead flags the enemy dead. Only the first caller gets true.
func (e *Enemy) MarkDead() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return false
	}
	e.dead = true
	e.diedAt = time.Now()
	return true
}

// DiedAt returns when the enemy died (zero while alive).
func (e *Enemy) DiedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diedAt
}

// View is a read-only snapshot for clients.
type View struct {
	ID        string      `json:"id"`
	Template  string      `json:"template"`
	Name      string      `json:"name"`
	Position  combat.Vec3 `json:"position"`
	Health    float64     `json:"health"`
	MaxHealth float64     `json:"max_health"`
	Dead      bool        `json:"dead"`
}

// View snapshots the enemy.
func (e *Enemy) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{
		ID:        e.InstID,
		Template:  e.Template.ID,
		Name:      e.Template.Name,
		Position:  e.pos,
		Health:    e.health,
		MaxHealth: e.Template.MaxHealth,
		Dead:      e.dead,
	}
}
