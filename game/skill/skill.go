package skill

import (
	"fmt"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
)

// Effect kinds with a registered handler.
const (
	KindDash         = "dash"
	KindProjectile   = "projectile"
	KindHealOverTime = "heal_over_time"
	KindArea         = "area"
	KindMelee        = "melee"
)

// EffectSpec parameterises a skill effect. Numeric fields are formulas
// over the caster's stats (a.str, a.def, a.level, ...) and the skill's
// own level (s.level); an empty formula evaluates to 0.
type EffectSpec struct {
	Kind        string `json:"kind" mapstructure:"kind"`
	Damage      string `json:"damage,omitempty" mapstructure:"damage"`
	Amount      string `json:"amount,omitempty" mapstructure:"amount"`
	TickAmount  string `json:"tick_amount,omitempty" mapstructure:"tick_amount"`
	Duration    string `json:"duration,omitempty" mapstructure:"duration"`
	Interval    string `json:"interval,omitempty" mapstructure:"interval"`
	Range       string `json:"range,omitempty" mapstructure:"range"`
	Radius      string `json:"radius,omitempty" mapstructure:"radius"`
	Knockback   string `json:"knockback,omitempty" mapstructure:"knockback"`
	Distance    string `json:"distance,omitempty" mapstructure:"distance"`
	Speed       string `json:"speed,omitempty" mapstructure:"speed"`
	HitRadius   string `json:"hit_radius,omitempty" mapstructure:"hit_radius"`
	MaxDistance string `json:"max_distance,omitempty" mapstructure:"max_distance"`
	// RequireHit makes an area effect fail (no cooldown) when it hits nothing.
	RequireHit bool `json:"require_hit,omitempty" mapstructure:"require_hit"`
	// FX names the effect trigger emitted on success.
	FX string `json:"fx,omitempty" mapstructure:"fx"`
}

func (e EffectSpec) formulas() []string {
	return []string{e.Damage, e.Amount, e.TickAmount, e.Duration, e.Interval, e.Range,
		e.Radius, e.Knockback, e.Distance, e.Speed, e.HitRadius, e.MaxDistance}
}

// Skill is a learnable, upgradable ability.
type Skill struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Icon          string     `json:"icon"`
	Color         string     `json:"color"`
	Level         int        `json:"level"`
	MaxLevel      int        `json:"maxLevel"`
	Cooldown      float64    `json:"cooldown"` // seconds
	ManaCost      float64    `json:"manaCost"`
	RequiredLevel int        `json:"requiredLevel"`
	Effect        EffectSpec `json:"effect"`
}

// CooldownDuration returns Cooldown as a time.Duration.
func (s *Skill) CooldownDuration() time.Duration {
	return time.Duration(s.Cooldown * float64(time.Second))
}

// Normalize fills defaults: level 1, max level at least the level, required level 1.
func (s *Skill) Normalize() {
	if s.Level < 1 {
		s.Level = 1
	}
	if s.MaxLevel < s.Level {
		s.MaxLevel = s.Level
	}
	if s.RequiredLevel < 1 {
		s.RequiredLevel = 1
	}
	if s.Cooldown < 0 {
		s.Cooldown = 0
	}
	if s.ManaCost < 0 {
		s.ManaCost = 0
	}
}

// Validate checks that the effect kind is registered and every formula parses.
func (s *Skill) Validate() error { return s.ValidateWith(combat.Builtin) }

// ValidateWith is Validate with formulas test-evaluated through ev.
func (s *Skill) ValidateWith(ev combat.Evaluator) error {
	if s.ID == "" {
		return fmt.Errorf("skill: missing id")
	}
	if !KnownKind(s.Effect.Kind) {
		return fmt.Errorf("skill %s: unknown effect kind %q", s.ID, s.Effect.Kind)
	}
	sample := combat.Vars{Strength: 1, Defense: 1, Speed: 1, Level: 1, Health: 1, Mana: 1, MaxHealth: 1, MaxMana: 1, SkillLevel: 1}
	for _, f := range s.Effect.formulas() {
		if _, err := ev.Eval(f, sample); err != nil {
			return fmt.Errorf("skill %s: formula %q: %w", s.ID, f, err)
		}
	}
	return nil
}

// DefaultSkills returns the built-in skill definitions.
func DefaultSkills() []Skill {
	return []Skill{
		{
			ID:            "dash",
			Name:          "Dash",
			Description:   "Quickly dash forward in the direction you're facing.",
			Icon:          "→",
			Color:         "#3498db",
			Level:         1,
			MaxLevel:      3,
			Cooldown:      5,
			ManaCost:      10,
			RequiredLevel: 1,
			Effect:        EffectSpec{Kind: KindDash, Distance: "3 + (s.level - 1)", FX: "dash"},
		},
		{
			ID:            "fireball",
			Name:          "Fireball",
			Description:   "Launch a ball of fire that damages enemies.",
			Icon:          "🔥",
			Color:         "#e74c3c",
			Level:         1,
			MaxLevel:      5,
			Cooldown:      3,
			ManaCost:      15,
			RequiredLevel: 2,
			Effect: EffectSpec{
				Kind:        KindProjectile,
				Damage:      "10 + s.level * 5 + a.str / 2",
				Speed:       "0.5",
				HitRadius:   "1.5",
				MaxDistance: "30",
				FX:          "projectile",
			},
		},
		{
			ID:            "heal",
			Name:          "Healing Aura",
			Description:   "Create a healing aura that restores health over time.",
			Icon:          "💚",
			Color:         "#2ecc71",
			Level:         1,
			MaxLevel:      3,
			Cooldown:      15,
			ManaCost:      25,
			RequiredLevel: 3,
			Effect: EffectSpec{
				Kind:       KindHealOverTime,
				Amount:     "5 + s.level * 3",
				TickAmount: "(5 + s.level * 3) / 2",
				Duration:   "5 + s.level * 2",
				Interval:   "1",
				FX:         "healing_aura",
			},
		},
		{
			ID:            "shockwave",
			Name:          "Shockwave",
			Description:   "Create a shockwave that damages and pushes back nearby enemies.",
			Icon:          "⚡",
			Color:         "#9b59b6",
			Level:         1,
			MaxLevel:      3,
			Cooldown:      8,
			ManaCost:      20,
			RequiredLevel: 4,
			Effect: EffectSpec{
				Kind:       KindArea,
				Damage:     "15 + s.level * 5",
				Radius:     "5 + s.level",
				Knockback:  "3",
				RequireHit: true,
				FX:         "shockwave",
			},
		},
		{
			ID:            "swordSlash",
			Name:          "Sword Slash",
			Description:   "A powerful slash with your sword.",
			Icon:          "⚔️",
			Color:         "#e74c3c",
			Level:         1,
			MaxLevel:      5,
			Cooldown:      2,
			ManaCost:      5,
			RequiredLevel: 1,
			Effect:        EffectSpec{Kind: KindMelee, Damage: "10 + a.str / 2", Range: "2", FX: "sword_slash"},
		},
	}
}
