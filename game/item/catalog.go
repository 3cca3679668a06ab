package item

import (
	"math/rand"
	"sort"
	"sync"
)

// LootEntry weights one template in the random loot table.
type LootEntry struct {
	ItemID string `json:"item_id"`
	Weight int    `json:"weight"`
}

// Catalog holds item templates and the random loot table.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]Item
	loot      []LootEntry
}

// NewCatalog creates a catalog from templates and a loot table. Templates
// are normalized; loot entries naming unknown templates or with
// non-positive weight are dropped.
func NewCatalog(templates []Item, loot []LootEntry) *Catalog {
	c := &Catalog{templates: make(map[string]Item, len(templates))}
	for _, t := range templates {
		t.Normalize()
		c.templates[t.ID] = t
	}
	for _, e := range loot {
		if _, ok := c.templates[e.ItemID]; ok && e.Weight > 0 {
			c.loot = append(c.loot, e)
		}
	}
	return c
}

// DefaultTemplates returns the built-in consumables.
func DefaultTemplates() []Item {
	return []Item{
		{
			ID:          "apple",
			Name:        "Apple",
			Description: "A juicy red apple. Restores 10 health when eaten.",
			Type:        TypeConsumable,
			Color:       "#ff0000",
			Stackable:   true,
			Value:       5,
			Use:         &UseEffect{Kind: UseHeal, Amount: 10},
		},
		{
			ID:          "health_potion",
			Name:        "Health Potion",
			Description: "A magical potion that restores 25 health.",
			Type:        TypeConsumable,
			Color:       "#ff3366",
			Stackable:   true,
			Value:       15,
			Use:         &UseEffect{Kind: UseHeal, Amount: 25},
		},
		{
			ID:          "mana_potion",
			Name:        "Mana Potion",
			Description: "A magical potion that restores 25 mana.",
			Type:        TypeConsumable,
			Color:       "#3366ff",
			Stackable:   true,
			Value:       15,
			Use:         &UseEffect{Kind: UseRestoreMana, Amount: 25},
		},
	}
}

// DefaultLoot is the built-in drop table.
func DefaultLoot() []LootEntry {
	return []LootEntry{
		{ItemID: "apple", Weight: 70},
		{ItemID: "health_potion", Weight: 20},
		{ItemID: "mana_potion", Weight: 10},
	}
}

// DefaultCatalog returns a catalog with the built-in items and loot table.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultTemplates(), DefaultLoot())
}

// New returns a fresh item built from the template id.
func (c *Catalog) New(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	if !ok {
		return Item{}, false
	}
	return t.Clone(), true
}

// IDs returns the template ids in sorted order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.templates))
	for id := range c.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RandomLoot rolls the loot table. The bool is false when the table is empty.
func (c *Catalog) RandomLoot(rng *rand.Rand) (Item, bool) {
	c.mu.RLock()
	loot := c.loot
	c.mu.RUnlock()
	if len(loot) == 0 {
		return Item{}, false
	}
	total := 0
	for _, e := range loot {
		total += e.Weight
	}
	roll := rollIntn(rng, total)
	for _, e := range loot {
		roll -= e.Weight
		if roll < 0 {
			return c.New(e.ItemID)
		}
	}
	return c.New(loot[0].ItemID)
}

func rollIntn(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.Intn(n)
	}
	return rng.Intn(n)
}
