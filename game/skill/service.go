package skill

import (
	"context"
	"sync"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/cooldown"
	"github.com/kasuganosora/arenacore/game/effect"
	"github.com/kasuganosora/arenacore/game/fx"
)

// HotbarSize is the number of active skill slots.
const HotbarSize = 4

// Reasons an activation was refused.
const (
	ReasonUnknownSkill = "unknown_skill"
	ReasonCooldown     = "cooldown"
	ReasonMana         = "not_enough_mana"
	ReasonLevel        = "level_too_low"
	ReasonEffectFailed = "effect_failed"
	ReasonEmptySlot    = "empty_slot"
)

// Caster is the character activating a skill.
type Caster interface {
	combat.Rewarder
	CharacterID() int64
	FormulaVars() combat.Vars
	UseMana(amount float64) bool
	Heal(amount float64) float64
	Effects() *effect.List
}

// GameContext is the world around one activation. Every field is optional:
// effects that need a missing piece fail or resolve against nothing.
type GameContext struct {
	Now      time.Time
	Pose     *combat.Pose
	Targets  combat.TargetSet
	Resolver *combat.Resolver
	FX       fx.Emitter
	// Formulas evaluates effect formulas; nil uses combat.Eval.
	Formulas combat.Evaluator
}

func (gc GameContext) now() time.Time {
	if gc.Now.IsZero() {
		return time.Now()
	}
	return gc.Now
}

func (gc GameContext) emitter() fx.Emitter {
	if gc.FX == nil {
		return fx.Discard
	}
	return gc.FX
}

func (gc GameContext) resolver() *combat.Resolver {
	if gc.Resolver == nil {
		return combat.NewResolver(gc.emitter())
	}
	return gc.Resolver
}

// Activation reports what an activation attempt did.
type Activation struct {
	SkillID    string        `json:"skill_id"`
	Success    bool          `json:"success"`
	Reason     string        `json:"reason,omitempty"`
	ManaSpent  float64       `json:"mana_spent"`
	CooldownMs int64         `json:"cooldown_ms"` // started on success, remaining on a cooldown refusal
	Result     combat.Result `json:"result"`
}

// Catalog is one character's skill book: skill levels, unspent skill
// points, the hot-bar, and the per-skill cooldowns.
type Catalog struct {
	mu     sync.Mutex
	skills map[string]*Skill
	order  []string
	points int
	bar    [HotbarSize]string
	cd     *cooldown.Registry
}

// NewCatalog builds a skill book from definitions. Duplicate ids keep the
// first definition. The first definition goes into hot-bar slot 0.
func NewCatalog(defs []Skill) *Catalog {
	c := &Catalog{skills: make(map[string]*Skill, len(defs)), cd: cooldown.NewRegistry()}
	for _, d := range defs {
		if _, dup := c.skills[d.ID]; dup || d.ID == "" {
			continue
		}
		d.Normalize()
		sk := d
		c.skills[d.ID] = &sk
		c.order = append(c.order, d.ID)
	}
	if len(c.order) > 0 {
		c.bar[0] = c.order[0]
	}
	return c
}

// Get returns a copy of the skill.
func (c *Catalog) Get(id string) (Skill, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sk, ok := c.skills[id]
	if !ok {
		return Skill{}, false
	}
	return *sk, true
}

// List returns copies of every skill in definition order.
func (c *Catalog) List() []Skill {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Skill, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.skills[id])
	}
	return out
}

// Points returns the unspent skill points.
func (c *Catalog) Points() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points
}

// AddPoints grants n skill points. Non-positive n is ignored.
func (c *Catalog) AddPoints(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.points += n
	c.mu.Unlock()
}

// SetPoints overwrites the unspent skill points (loading a save).
func (c *Catalog) SetPoints(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	c.points = n
	c.mu.Unlock()
}

// SetLevel overwrites a skill's level, clamped to [1, MaxLevel].
func (c *Catalog) SetLevel(id string, level int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sk, ok := c.skills[id]
	if !ok {
		return false
	}
	sk.Level = min(max(level, 1), sk.MaxLevel)
	return true
}

// Upgrade spends a skill point to raise a skill one level.
func (c *Catalog) Upgrade(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sk, ok := c.skills[id]
	if !ok || sk.Level >= sk.MaxLevel || c.points <= 0 {
		return false
	}
	sk.Level++
	c.points--
	return true
}

// Cooldowns exposes the cooldown registry for persistence.
func (c *Catalog) Cooldowns() *cooldown.Registry { return c.cd }

// IsOnCooldown reports whether id is cooling down at now.
func (c *Catalog) IsOnCooldown(id string, now time.Time) bool {
	return c.cd.IsOnCooldown(id, now)
}

// CooldownRemaining returns how long id still cools down at now.
func (c *Catalog) CooldownRemaining(id string, now time.Time) time.Duration {
	return c.cd.Remaining(id, now)
}

// Activate runs the checks in order (exists, off cooldown, enough mana,
// level requirement), spends the mana, runs the effect and starts the
// cooldown only if the effect succeeded.
func (c *Catalog) Activate(ctx context.Context, id string, caster Caster, gc GameContext) Activation {
	act := Activation{SkillID: id}
	now := gc.now()

	c.mu.Lock()
	sk, ok := c.skills[id]
	if !ok {
		c.mu.Unlock()
		act.Reason = ReasonUnknownSkill
		return act
	}
	snap := *sk
	c.mu.Unlock()

	if c.cd.IsOnCooldown(id, now) {
		act.Reason = ReasonCooldown
		act.CooldownMs = c.cd.Remaining(id, now).Milliseconds()
		return act
	}
	vars := caster.FormulaVars()
	if vars.Mana < snap.ManaCost {
		act.Reason = ReasonMana
		return act
	}
	if vars.Level < snap.RequiredLevel {
		act.Reason = ReasonLevel
		return act
	}
	h, ok := handlerFor(snap.Effect.Kind)
	if !ok {
		act.Reason = ReasonUnknownSkill
		return act
	}
	if !caster.UseMana(snap.ManaCost) {
		act.Reason = ReasonMana
		return act
	}
	act.ManaSpent = snap.ManaCost

	vars.Mana -= snap.ManaCost
	vars.SkillLevel = snap.Level
	in := &Invocation{Skill: snap, Caster: caster, Game: gc, Vars: vars}
	res, success := h(ctx, in)
	act.Result = res
	if !success {
		act.Reason = ReasonEffectFailed
		return act
	}

	act.Success = true
	cooldown := snap.CooldownDuration()
	c.cd.Start(id, cooldown, now)
	act.CooldownMs = cooldown.Milliseconds()

	em := gc.emitter()
	data := map[string]any{"level": snap.Level}
	if gc.Pose != nil {
		data["position"] = gc.Pose.Position
		data["direction"] = gc.Pose.Direction()
	}
	em.Emit(ctx, fx.Event{Type: fx.SkillActivated, CharID: caster.CharacterID(), SkillID: id, Amount: snap.ManaCost})
	if snap.Effect.FX != "" {
		em.Emit(ctx, fx.Event{Type: snap.Effect.FX, CharID: caster.CharacterID(), SkillID: id, Data: data})
	}
	return act
}

// Hotbar returns the skill ids in each slot ("" for empty).
func (c *Catalog) Hotbar() [HotbarSize]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bar
}

// Assign puts skill id into slot, removing it from any other slot. Skills
// above the character's level cannot be assigned.
func (c *Catalog) Assign(slot int, id string, characterLevel int) bool {
	if slot < 0 || slot >= HotbarSize {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sk, ok := c.skills[id]
	if !ok || characterLevel < sk.RequiredLevel {
		return false
	}
	for i := range c.bar {
		if c.bar[i] == id {
			c.bar[i] = ""
		}
	}
	c.bar[slot] = id
	return true
}

// Clear empties slot.
func (c *Catalog) Clear(slot int) bool {
	if slot < 0 || slot >= HotbarSize {
		return false
	}
	c.mu.Lock()
	c.bar[slot] = ""
	c.mu.Unlock()
	return true
}

// SetHotbar overwrites the hot-bar (loading a save), dropping unknown ids.
func (c *Catalog) SetHotbar(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bar = [HotbarSize]string{}
	for i, id := range ids {
		if i >= HotbarSize {
			break
		}
		if _, ok := c.skills[id]; ok {
			c.bar[i] = id
		}
	}
}

// ActivateSlot activates the skill in slot.
func (c *Catalog) ActivateSlot(ctx context.Context, slot int, caster Caster, gc GameContext) Activation {
	if slot < 0 || slot >= HotbarSize {
		return Activation{Reason: ReasonEmptySlot}
	}
	c.mu.Lock()
	id := c.bar[slot]
	c.mu.Unlock()
	if id == "" {
		return Activation{Reason: ReasonEmptySlot}
	}
	return c.Activate(ctx, id, caster, gc)
}
