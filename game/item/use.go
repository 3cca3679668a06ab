package item

import "sync"

// Use effect kinds.
const (
	UseHeal        = "heal"
	UseRestoreMana = "restore_mana"
)

// Consumer is the entity an item is used on.
type Consumer interface {
	Heal(amount float64) float64
	RestoreMana(amount float64) float64
}

// UseHandler applies a use effect and reports whether the item was consumed.
type UseHandler func(c Consumer, amount float64) bool

var (
	useMu       sync.RWMutex
	useHandlers = map[string]UseHandler{
		UseHeal: func(c Consumer, amount float64) bool {
			c.Heal(amount)
			return true
		},
		UseRestoreMana: func(c Consumer, amount float64) bool {
			c.RestoreMana(amount)
			return true
		},
	}
)

// RegisterUse installs the handler for a use effect kind, replacing any
// existing one.
func RegisterUse(kind string, h UseHandler) {
	useMu.Lock()
	defer useMu.Unlock()
	useHandlers[kind] = h
}

// KnownUse reports whether a handler exists for kind.
func KnownUse(kind string) bool {
	useMu.RLock()
	defer useMu.RUnlock()
	_, ok := useHandlers[kind]
	return ok
}

// Apply runs the item's use effect against c.
func Apply(it *Item, c Consumer) bool {
	if it == nil || !it.Usable() || c == nil {
		return false
	}
	useMu.RLock()
	h, ok := useHandlers[it.Use.Kind]
	useMu.RUnlock()
	if !ok {
		return false
	}
	return h(c, it.Use.Amount)
}
