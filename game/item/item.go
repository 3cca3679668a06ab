package item

import (
	"github.com/google/uuid"
)

// Item types.
const (
	TypeConsumable = "consumable"
	TypeWeapon     = "weapon"
	TypeArmor      = "armor"
	TypeMisc       = "misc"
)

// UseEffect is what happens when an item is consumed. Kind selects a
// registered use handler; Amount is its magnitude.
type UseEffect struct {
	Kind   string  `json:"kind"`
	Amount float64 `json:"amount"`
}

// Item is a bag or equipment entry.
type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Color       string     `json:"color"`
	Image       string     `json:"image,omitempty"`
	Quantity    int        `json:"quantity"`
	Stackable   bool       `json:"stackable"`
	Value       int        `json:"value"`
	Use         *UseEffect `json:"use,omitempty"`
}

// Normalize fills unset fields with their defaults. A missing id becomes
// "item_<uuid>".
func (it *Item) Normalize() {
	if it.ID == "" {
		it.ID = "item_" + uuid.NewString()
	}
	if it.Name == "" {
		it.Name = "Unknown Item"
	}
	if it.Description == "" {
		it.Description = "No description available."
	}
	if it.Type == "" {
		it.Type = TypeMisc
	}
	if it.Color == "" {
		it.Color = "#aaaaaa"
	}
	if it.Quantity <= 0 {
		it.Quantity = 1
	}
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	if it.Use != nil {
		u := *it.Use
		it.Use = &u
	}
	return it
}

// Usable reports whether the item has a use effect.
func (it *Item) Usable() bool { return it.Use != nil && it.Use.Kind != "" }
