package world

import (
	"sync"

	"github.com/kasuganosora/arenacore/game/combat"
)

// Registry holds every enemy in the arena. It satisfies combat.TargetSet.
type Registry struct {
	mu      sync.RWMutex
	enemies map[string]*Enemy
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{enemies: make(map[string]*Enemy)}
}

// Add registers e.
func (r *Registry) Add(e *Enemy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enemies[e.InstID]; ok {
		return
	}
	r.enemies[e.InstID] = e
	r.order = append(r.order, e.InstID)
}

// Remove drops the enemy with id. Returns true if it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enemies[id]; !ok {
		return false
	}
	delete(r.enemies, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the enemy with id, or nil.
func (r *Registry) Get(id string) *Enemy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enemies[id]
}

// All returns every enemy, dead or alive, in spawn order.
func (r *Registry) All() []*Enemy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Enemy, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.enemies[id])
	}
	return out
}

// Targets implements combat.TargetSet.
func (r *Registry) Targets() []combat.Target {
	all := r.All()
	out := make([]combat.Target, len(all))
	for i, e := range all {
		out[i] = e
	}
	return out
}

// Alive returns the enemies that are not dead.
func (r *Registry) Alive() []*Enemy {
	var out []*Enemy
	for _, e := range r.All() {
		if !e.IsDead() {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of registered enemies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Views snapshots every enemy.
func (r *Registry) Views() []View {
	all := r.All()
	out := make([]View, len(all))
	for i, e := range all {
		out[i] = e.View()
	}
	return out
}
