package cooldown

import (
	"sync"
	"time"
)

// entry is one running cooldown.
type entry struct {
	start    time.Time
	duration time.Duration
}

func (e entry) remaining(now time.Time) time.Duration {
	r := e.duration - now.Sub(e.start)
	if r < 0 {
		return 0
	}
	return r
}

// Registry tracks per-skill cooldown timers. Expired entries are inert and
// only dropped by Prune or overwritten by the next Start.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Start records a cooldown for id beginning at now. Restarting overwrites.
func (r *Registry) Start(id string, duration time.Duration, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry{start: now, duration: duration}
}

// IsOnCooldown reports whether id is still cooling down at now.
func (r *Registry) IsOnCooldown(id string, now time.Time) bool {
	return r.Remaining(id, now) > 0
}

// Remaining returns max(0, duration - elapsed) for id.
func (r *Registry) Remaining(id string, now time.Time) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return 0
	}
	return e.remaining(now)
}

// Reset clears the cooldown for id.
func (r *Registry) Reset(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Prune drops entries that have elapsed at now and returns how many were removed.
func (r *Registry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.remaining(now) == 0 {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Snapshot returns the ready-at time of every cooldown still running at now.
func (r *Registry) Snapshot(now time.Time) map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]time.Time, len(r.entries))
	for id, e := range r.entries {
		if e.remaining(now) > 0 {
			out[id] = e.start.Add(e.duration)
		}
	}
	return out
}

// Restore re-creates cooldowns from ready-at times. Entries already elapsed at now are skipped.
func (r *Registry) Restore(readyAt map[string]time.Time, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range readyAt {
		if !at.After(now) {
			continue
		}
		r.entries[id] = entry{start: now, duration: at.Sub(now)}
	}
}
