package character

import (
	"encoding/json"

	"github.com/kasuganosora/arenacore/game/item"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/game/stats"
)

// Record is the flat, persisted form of a character.
type Record struct {
	Name                  string                `json:"name"`
	Color                 string                `json:"color"`
	Level                 int                   `json:"level"`
	Experience            int                   `json:"experience"`
	ExperienceToNextLevel int                   `json:"experienceToNextLevel"`
	MaxHealth             float64               `json:"maxHealth"`
	CurrentHealth         float64               `json:"currentHealth"`
	HealthRegen           float64               `json:"healthRegen"`
	MaxMana               float64               `json:"maxMana"`
	CurrentMana           float64               `json:"currentMana"`
	ManaRegen             float64               `json:"manaRegen"`
	Strength              int                   `json:"strength"`
	Defense               int                   `json:"defense"`
	Speed                 int                   `json:"speed"`
	Inventory             []item.Item           `json:"inventory"`
	Equipment             map[string]*item.Item `json:"equipment"`
	Skills                []skill.Skill         `json:"skills"`
	Abilities             []string              `json:"abilities"`
	SkillPoints           int                   `json:"skillPoints"`
	ActiveSkills          []string              `json:"activeSkills"`
}

// Record captures the character's persistent state.
func (c *Character) Record() Record {
	bar := c.Skills.Hotbar()
	abilities := c.Abilities
	if abilities == nil {
		abilities = []string{}
	}
	return Record{
		Name:                  c.Name,
		Color:                 c.Color,
		Level:                 c.Track.Level,
		Experience:            c.Track.Experience,
		ExperienceToNextLevel: c.Track.ExperienceToNext,
		MaxHealth:             c.Vitals.Health.Max,
		CurrentHealth:         c.Vitals.Health.Current,
		HealthRegen:           c.Vitals.Health.Regen,
		MaxMana:               c.Vitals.Mana.Max,
		CurrentMana:           c.Vitals.Mana.Current,
		ManaRegen:             c.Vitals.Mana.Regen,
		Strength:              c.Strength,
		Defense:               c.Defense,
		Speed:                 c.Speed,
		Inventory:             c.Inventory.Items(),
		Equipment:             c.Equipment.Snapshot(),
		Skills:                c.Skills.List(),
		Abilities:             abilities,
		SkillPoints:           c.Skills.Points(),
		ActiveSkills:          bar[:],
	}
}

// MarshalJSON encodes the character as its Record.
func (c *Character) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Record())
}

// FromRecord rebuilds a character from a complete record. Out-of-range
// values are clamped. Persisted skills only contribute their level;
// definitions come from defs.
func FromRecord(r Record, defs []skill.Skill) *Character {
	c := New(r.Name, r.Color, defs)

	c.Track = stats.Track{
		Level:            r.Level,
		Experience:       r.Experience,
		ExperienceToNext: r.ExperienceToNextLevel,
	}
	c.Track.Normalize()

	c.Vitals.Health = stats.Pool{Current: r.CurrentHealth, Max: r.MaxHealth, Regen: r.HealthRegen}
	c.Vitals.Mana = stats.Pool{Current: r.CurrentMana, Max: r.MaxMana, Regen: r.ManaRegen}
	c.Vitals.Health.Clamp()
	c.Vitals.Mana.Clamp()

	c.Strength = r.Strength
	c.Defense = r.Defense
	c.Speed = r.Speed

	c.Inventory.Replace(r.Inventory)
	if r.Equipment != nil {
		c.Equipment.Load(r.Equipment)
	}
	for _, sk := range r.Skills {
		c.Skills.SetLevel(sk.ID, sk.Level)
	}
	c.Skills.SetPoints(r.SkillPoints)
	if r.ActiveSkills != nil {
		c.Skills.SetHotbar(r.ActiveSkills)
	}
	c.Abilities = append([]string(nil), r.Abilities...)
	return c
}

// storedRecord tells absent numeric keys apart from stored zeros. Its
// pointer fields shadow the embedded Record's fields of the same key.
type storedRecord struct {
	Record
	Level                 *int     `json:"level"`
	ExperienceToNextLevel *int     `json:"experienceToNextLevel"`
	MaxHealth             *float64 `json:"maxHealth"`
	CurrentHealth         *float64 `json:"currentHealth"`
	HealthRegen           *float64 `json:"healthRegen"`
	MaxMana               *float64 `json:"maxMana"`
	CurrentMana           *float64 `json:"currentMana"`
	ManaRegen             *float64 `json:"manaRegen"`
	Strength              *int     `json:"strength"`
	Defense               *int     `json:"defense"`
	Speed                 *int     `json:"speed"`
}

// complete fills absent keys with the constructor defaults. A missing
// current value starts full.
func (s storedRecord) complete() Record {
	r := s.Record
	r.Level = intOr(s.Level, stats.DefaultLevel)
	r.ExperienceToNextLevel = intOr(s.ExperienceToNextLevel, stats.DefaultExperienceToNext)
	r.MaxHealth = floatOr(s.MaxHealth, DefaultMaxHealth)
	r.CurrentHealth = floatOr(s.CurrentHealth, r.MaxHealth)
	r.HealthRegen = floatOr(s.HealthRegen, DefaultHealthRegen)
	r.MaxMana = floatOr(s.MaxMana, DefaultMaxMana)
	r.CurrentMana = floatOr(s.CurrentMana, r.MaxMana)
	r.ManaRegen = floatOr(s.ManaRegen, DefaultManaRegen)
	r.Strength = intOr(s.Strength, DefaultStrength)
	r.Defense = intOr(s.Defense, DefaultDefense)
	r.Speed = intOr(s.Speed, DefaultSpeed)
	return r
}

// FromJSON decodes a stored record and rebuilds the character from it.
// Only missing keys take their defaults.
func FromJSON(data []byte, defs []skill.Skill) (*Character, error) {
	var s storedRecord
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return FromRecord(s.complete(), defs), nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
