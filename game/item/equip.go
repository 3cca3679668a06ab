package item

import (
	"encoding/json"
	"sync"
)

// Equipment slots.
const (
	SlotWeapon = "weapon"
	SlotArmor  = "armor"
	SlotHelmet = "helmet"
	SlotBoots  = "boots"
)

// Slots lists every equipment slot in display order.
var Slots = []string{SlotWeapon, SlotArmor, SlotHelmet, SlotBoots}

// ValidSlot reports whether slot names an equipment slot.
func ValidSlot(slot string) bool {
	for _, s := range Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// Equipment maps each slot to at most one item.
type Equipment struct {
	mu    sync.RWMutex
	slots map[string]*Item
}

// NewEquipment creates an empty loadout.
func NewEquipment() *Equipment {
	e := &Equipment{slots: make(map[string]*Item, len(Slots))}
	for _, s := range Slots {
		e.slots[s] = nil
	}
	return e
}

// Equip puts it in slot and returns whatever was there before (nil if the
// slot was empty). ok is false for an unknown slot, in which case nothing
// changes.
func (e *Equipment) Equip(slot string, it Item) (old *Item, ok bool) {
	if !ValidSlot(slot) {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	old = e.slots[slot]
	e.slots[slot] = &it
	return old, true
}

// Unequip empties slot and returns the item that was there.
func (e *Equipment) Unequip(slot string) *Item {
	if !ValidSlot(slot) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.slots[slot]
	e.slots[slot] = nil
	return old
}

// Get returns a copy of the item in slot, or nil.
func (e *Equipment) Get(slot string) *Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it := e.slots[slot]
	if it == nil {
		return nil
	}
	c := it.Clone()
	return &c
}

// Snapshot returns a copy of every slot, empty slots as nil.
func (e *Equipment) Snapshot() map[string]*Item {
	out := make(map[string]*Item, len(Slots))
	for _, s := range Slots {
		out[s] = e.Get(s)
	}
	return out
}

// Load replaces the loadout from a snapshot, ignoring unknown slots.
func (e *Equipment) Load(m map[string]*Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range Slots {
		e.slots[s] = nil
		if it, ok := m[s]; ok && it != nil {
			c := it.Clone()
			e.slots[s] = &c
		}
	}
}

// MarshalJSON encodes the loadout as {"weapon": ..., "armor": ..., ...}.
func (e *Equipment) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Snapshot())
}
