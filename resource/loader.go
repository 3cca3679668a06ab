package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/item"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/game/world"
)

// Data file names looked up in the data directory.
const (
	SkillsFile  = "skills.json"
	ItemsFile   = "items.json"
	EnemiesFile = "enemies.json"
)

// ItemsData is the layout of items.json.
type ItemsData struct {
	Templates []item.Item      `json:"templates"`
	Loot      []item.LootEntry `json:"loot"`
}

// EnemiesData is the layout of enemies.json.
type EnemiesData struct {
	Templates []world.EnemyTemplate `json:"templates"`
	Spawns    []world.SpawnConfig   `json:"spawns"`
}

// ResourceLoader holds the game tables: skill definitions, item templates
// with the loot table, and enemy templates with spawn points.
type ResourceLoader struct {
	DataPath string

	Skills  []skill.Skill
	Items   ItemsData
	Enemies EnemiesData

	// Sources records which files were read (missing files keep the built-ins).
	Sources []string

	// Formulas validates skill formulas; nil uses the built-in grammar.
	Formulas combat.Evaluator
}

// NewLoader creates a ResourceLoader populated with the built-in tables.
func NewLoader(dataPath string) *ResourceLoader {
	return &ResourceLoader{
		DataPath: dataPath,
		Skills:   skill.DefaultSkills(),
		Items:    ItemsData{Templates: item.DefaultTemplates(), Loot: item.DefaultLoot()},
		Enemies:  EnemiesData{Templates: world.DefaultTemplates(), Spawns: world.DefaultSpawns()},
	}
}

// Load reads every data file present in DataPath and validates it. A file
// that fails to parse or validate aborts the load and leaves the loader
// unchanged.
func (rl *ResourceLoader) Load() error {
	if rl.DataPath == "" {
		return nil
	}
	next := *rl
	next.Sources = nil

	if ok, err := loadJSONObject(rl.path(SkillsFile), &next.Skills); err != nil {
		return err
	} else if ok {
		next.Sources = append(next.Sources, SkillsFile)
	}
	if ok, err := loadJSONObject(rl.path(ItemsFile), &next.Items); err != nil {
		return err
	} else if ok {
		next.Sources = append(next.Sources, ItemsFile)
	}
	if ok, err := loadJSONObject(rl.path(EnemiesFile), &next.Enemies); err != nil {
		return err
	} else if ok {
		next.Sources = append(next.Sources, EnemiesFile)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*rl = next
	return nil
}

func (rl *ResourceLoader) path(file string) string {
	return filepath.Join(rl.DataPath, file)
}

// loadJSONObject decodes path into out. A missing file is not an error and
// reports false.
func loadJSONObject[T any](path string, out *T) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resource: read %s: %w", path, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return false, fmt.Errorf("resource: parse %s: %w", path, err)
	}
	*out = v
	return true, nil
}

// Validate checks ids, effect kinds, formulas and cross references.
func (rl *ResourceLoader) Validate() error {
	var errs []error

	seen := map[string]bool{}
	for i := range rl.Skills {
		s := &rl.Skills[i]
		s.Normalize()
		ev := rl.Formulas
		if ev == nil {
			ev = combat.Builtin
		}
		if err := s.ValidateWith(ev); err != nil {
			errs = append(errs, err)
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("skill %s: duplicate id", s.ID))
		}
		seen[s.ID] = true
	}

	items := map[string]bool{}
	for _, it := range rl.Items.Templates {
		switch {
		case it.ID == "":
			errs = append(errs, fmt.Errorf("item %q: missing id", it.Name))
		case items[it.ID]:
			errs = append(errs, fmt.Errorf("item %s: duplicate id", it.ID))
		case it.Usable() && !item.KnownUse(it.Use.Kind):
			errs = append(errs, fmt.Errorf("item %s: unknown use kind %q", it.ID, it.Use.Kind))
		}
		items[it.ID] = true
	}
	for _, l := range rl.Items.Loot {
		if !items[l.ItemID] {
			errs = append(errs, fmt.Errorf("loot: unknown item %q", l.ItemID))
		}
	}

	enemies := map[string]bool{}
	for _, t := range rl.Enemies.Templates {
		switch {
		case t.ID == "":
			errs = append(errs, fmt.Errorf("enemy %q: missing id", t.Name))
		case enemies[t.ID]:
			errs = append(errs, fmt.Errorf("enemy %s: duplicate id", t.ID))
		case t.MaxHealth <= 0:
			errs = append(errs, fmt.Errorf("enemy %s: max_health must be positive", t.ID))
		case t.LootChance < 0 || t.LootChance > 1:
			errs = append(errs, fmt.Errorf("enemy %s: loot_chance must be within 0..1", t.ID))
		}
		enemies[t.ID] = true
	}
	for i, sp := range rl.Enemies.Spawns {
		if !enemies[sp.Template] {
			errs = append(errs, fmt.Errorf("spawn %d: unknown template %q", i, sp.Template))
		}
	}
	return errors.Join(errs...)
}

// ItemCatalog builds the item catalog.
func (rl *ResourceLoader) ItemCatalog() *item.Catalog {
	return item.NewCatalog(rl.Items.Templates, rl.Items.Loot)
}
