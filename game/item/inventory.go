package item

import (
	"encoding/json"
	"sync"
)

// DefaultMaxSlots is the bag size of a new character.
const DefaultMaxSlots = 20

// Inventory is an ordered, bounded bag. Indices shift down on removal.
type Inventory struct {
	mu       sync.RWMutex
	items    []Item
	maxSlots int
}

// NewInventory creates an empty bag with maxSlots slots (DefaultMaxSlots when <= 0).
func NewInventory(maxSlots int) *Inventory {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	return &Inventory{maxSlots: maxSlots}
}

// MaxSlots returns the bag capacity.
func (inv *Inventory) MaxSlots() int { return inv.maxSlots }

// Len returns the number of occupied slots.
func (inv *Inventory) Len() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.items)
}

// Full reports whether no slot is free.
func (inv *Inventory) Full() bool { return inv.Len() >= inv.maxSlots }

// Add appends it. Returns false when the bag is full.
func (inv *Inventory) Add(it Item) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if len(inv.items) >= inv.maxSlots {
		return false
	}
	inv.items = append(inv.items, it)
	return true
}

// Remove takes the item at index out of the bag.
func (inv *Inventory) Remove(index int) (Item, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.removeLocked(index)
}

func (inv *Inventory) removeLocked(index int) (Item, bool) {
	if index < 0 || index >= len(inv.items) {
		return Item{}, false
	}
	it := inv.items[index]
	inv.items = append(inv.items[:index], inv.items[index+1:]...)
	return it, true
}

// Get returns a copy of the item at index.
func (inv *Inventory) Get(index int) (Item, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if index < 0 || index >= len(inv.items) {
		return Item{}, false
	}
	return inv.items[index].Clone(), true
}

// Items returns a copy of the bag contents in slot order.
func (inv *Inventory) Items() []Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]Item, len(inv.items))
	for i, it := range inv.items {
		out[i] = it.Clone()
	}
	return out
}

// Use applies the item at index to c and removes it if the use succeeded.
// Items without a use effect stay in the bag.
func (inv *Inventory) Use(index int, c Consumer) (Item, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if index < 0 || index >= len(inv.items) {
		return Item{}, false
	}
	it := inv.items[index]
	if !Apply(&it, c) {
		return Item{}, false
	}
	inv.removeLocked(index)
	return it, true
}

// Replace overwrites the whole bag, dropping anything past capacity.
func (inv *Inventory) Replace(items []Item) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if len(items) > inv.maxSlots {
		items = items[:inv.maxSlots]
	}
	inv.items = make([]Item, len(items))
	copy(inv.items, items)
}

// MarshalJSON encodes the bag as an array of items.
func (inv *Inventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inv.Items())
}
