package character

import (
	"context"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/effect"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/item"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/game/stats"
)

// Starting values of a new character.
const (
	DefaultMaxHealth   = 100
	DefaultHealthRegen = 1
	DefaultMaxMana     = 50
	DefaultManaRegen   = 0.5
	DefaultStrength    = 10
	DefaultDefense     = 5
	DefaultSpeed       = 10
)

// Character is a player's progression state. It is not safe for concurrent
// use; the owning session serialises access.
type Character struct {
	id    int64
	Name  string
	Color string

	Vitals   stats.Vitals
	Track    stats.Track
	Strength int
	Defense  int
	Speed    int

	Inventory *item.Inventory
	Equipment *item.Equipment
	Skills    *skill.Catalog
	Abilities []string

	effects effect.List
	fx      fx.Emitter
}

// New creates a level 1 character knowing the given skills.
func New(name, color string, defs []skill.Skill) *Character {
	return &Character{
		Name:  name,
		Color: color,
		Vitals: stats.Vitals{
			Health: stats.NewPool(DefaultMaxHealth, DefaultHealthRegen),
			Mana:   stats.NewPool(DefaultMaxMana, DefaultManaRegen),
		},
		Track:     stats.NewTrack(),
		Strength:  DefaultStrength,
		Defense:   DefaultDefense,
		Speed:     DefaultSpeed,
		Inventory: item.NewInventory(item.DefaultMaxSlots),
		Equipment: item.NewEquipment(),
		Skills:    skill.NewCatalog(defs),
		fx:        fx.Discard,
	}
}

// CharacterID returns the persistent id (0 until saved).
func (c *Character) CharacterID() int64 { return c.id }

// SetID assigns the persistent id.
func (c *Character) SetID(id int64) { c.id = id }

// AttachFX routes the character's own triggers (level up, death) to em.
func (c *Character) AttachFX(em fx.Emitter) {
	if em == nil {
		em = fx.Discard
	}
	c.fx = em
}

func (c *Character) Level() int            { return c.Track.Level }
func (c *Character) Health() float64       { return c.Vitals.Health.Current }
func (c *Character) Mana() float64         { return c.Vitals.Mana.Current }
func (c *Character) IsDead() bool          { return c.Vitals.Health.Empty() }
func (c *Character) Effects() *effect.List { return &c.effects }

// FormulaVars exposes the stats skill formulas read.
func (c *Character) FormulaVars() combat.Vars {
	return combat.Vars{
		Strength:  c.Strength,
		Defense:   c.Defense,
		Speed:     c.Speed,
		Level:     c.Track.Level,
		Health:    c.Vitals.Health.Current,
		Mana:      c.Vitals.Mana.Current,
		MaxHealth: c.Vitals.Health.Max,
		MaxMana:   c.Vitals.Mana.Max,
	}
}

// Tick advances the character by dt seconds: passive regeneration and
// due periodic effects. It returns the effect ticks that fired. Banked
// experience waits for the next grant.
func (c *Character) Tick(dt float64, now time.Time) []effect.Tick {
	c.Vitals.Tick(dt)
	ticks := c.effects.Tick(now)
	for _, t := range ticks {
		switch t.Kind {
		case effect.KindHeal:
			c.Vitals.Heal(t.Amount)
		case effect.KindMana:
			c.Vitals.RestoreMana(t.Amount)
		}
	}
	return ticks
}

// TakeDamage applies mitigated damage and returns the amount applied. A
// character brought to zero health loses every pending periodic effect.
func (c *Character) TakeDamage(amount float64) float64 {
	wasDead := c.IsDead()
	applied := c.Vitals.TakeDamage(amount, c.Defense)
	if !wasDead && c.IsDead() {
		c.effects.CancelAll()
		c.fx.Emit(context.Background(), fx.Event{Type: fx.Death, CharID: c.id})
	}
	return applied
}

// Heal restores health up to the maximum and returns the new health.
func (c *Character) Heal(amount float64) float64 { return c.Vitals.Heal(amount) }

// RestoreMana restores mana up to the maximum and returns the new mana.
func (c *Character) RestoreMana(amount float64) float64 { return c.Vitals.RestoreMana(amount) }

// UseMana spends amount if the character has it.
func (c *Character) UseMana(amount float64) bool { return c.Vitals.UseMana(amount) }

// GainExperience adds experience and reports whether a level was gained.
func (c *Character) GainExperience(amount int) bool {
	return c.Track.GainExperience(amount, c)
}

// ApplyGrowth raises stats for a new level, refills both pools and grants
// one skill point.
func (c *Character) ApplyGrowth(g stats.Growth, newLevel int) {
	c.Vitals.Health.Max += g.MaxHealth
	c.Vitals.Health.Fill()
	c.Vitals.Mana.Max += g.MaxMana
	c.Vitals.Mana.Fill()
	c.Strength += g.Strength
	c.Defense += g.Defense
	c.Speed += g.Speed
	c.Vitals.Health.Regen += g.HealthRegen
	c.Vitals.Mana.Regen += g.ManaRegen
	c.Skills.AddPoints(1)
	c.fx.Emit(context.Background(), fx.Event{
		Type:   fx.LevelUp,
		CharID: c.id,
		Amount: float64(newLevel),
		Data:   map[string]any{"level": newLevel, "skill_points": c.Skills.Points()},
	})
}

// LearnAbility records a passive ability name.
func (c *Character) LearnAbility(name string) {
	for _, a := range c.Abilities {
		if a == name {
			return
		}
	}
	c.Abilities = append(c.Abilities, name)
}

// ---- inventory & equipment ----

// AddItem puts it in the bag. False when the bag is full.
func (c *Character) AddItem(it item.Item) bool { return c.Inventory.Add(it) }

// UseItem consumes the bag item at index on this character.
func (c *Character) UseItem(index int) (item.Item, bool) {
	it, ok := c.Inventory.Use(index, c)
	if ok {
		c.fx.Emit(context.Background(), fx.Event{
			Type:     fx.ItemUsed,
			CharID:   c.id,
			TargetID: it.ID,
			Amount:   it.Use.Amount,
			Data:     map[string]any{"kind": it.Use.Kind},
		})
	}
	return it, ok
}

// DropItem removes the bag item at index.
func (c *Character) DropItem(index int) (item.Item, bool) { return c.Inventory.Remove(index) }

// EquipItem puts it straight into slot and returns what was there.
func (c *Character) EquipItem(slot string, it item.Item) (*item.Item, bool) {
	return c.Equipment.Equip(slot, it)
}

// EquipFromInventory moves the bag item at index into slot; the item that
// was in the slot goes back to the bag. Consumables cannot be equipped.
func (c *Character) EquipFromInventory(index int, slot string) bool {
	if !item.ValidSlot(slot) {
		return false
	}
	it, ok := c.Inventory.Get(index)
	if !ok || it.Type == item.TypeConsumable {
		return false
	}
	c.Inventory.Remove(index)
	old, _ := c.Equipment.Equip(slot, it)
	if old != nil {
		c.Inventory.Add(*old)
	}
	return true
}

// UnequipToInventory moves the item in slot into the bag. False when the
// slot is empty or the bag is full.
func (c *Character) UnequipToInventory(slot string) bool {
	if c.Equipment.Get(slot) == nil || c.Inventory.Full() {
		return false
	}
	return c.Inventory.Add(*c.Equipment.Unequip(slot))
}
