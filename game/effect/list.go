package effect

import (
	"sync"
	"time"
)

// Kinds of periodic effect.
const (
	KindHeal = "heal"
	KindMana = "mana"
)

// Instance is one active periodic effect on an entity.
type Instance struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Amount   float64       `json:"amount"`
	Interval time.Duration `json:"interval"`
	NextTick time.Time     `json:"next_tick"`
	ExpireAt time.Time     `json:"expire_at"`
}

// Done reports whether no further tick can fire.
func (in *Instance) Done() bool {
	return in.Interval <= 0 || in.NextTick.After(in.ExpireAt)
}

// due reports whether a tick is owed at now.
func (in *Instance) due(now time.Time) bool {
	return !in.Done() && !now.Before(in.NextTick)
}

// Tick is one application of a periodic effect.
type Tick struct {
	ID     string
	Kind   string
	Amount float64
}

// List holds the periodic effects owned by a single entity.
// The zero value is ready to use.
type List struct {
	mu    sync.Mutex
	items []*Instance
}

// Add starts a periodic effect ticking every interval until duration has
// passed, the last tick landing exactly at now+duration. An effect with the
// same id is replaced.
func (l *List) Add(id, kind string, amount float64, interval, duration time.Duration, now time.Time) *Instance {
	in := &Instance{
		ID:       id,
		Kind:     kind,
		Amount:   amount,
		Interval: interval,
		NextTick: now.Add(interval),
		ExpireAt: now.Add(duration),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, cur := range l.items {
		if cur.ID == id {
			l.items[i] = in
			return in
		}
	}
	l.items = append(l.items, in)
	return in
}

// Cancel removes the effect with id. Returns true if it was present.
func (l *List) Cancel(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, in := range l.items {
		if in.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// CancelAll drops every pending effect and returns how many were dropped.
func (l *List) CancelAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.items)
	l.items = nil
	return n
}

// Len returns the number of active effects.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// All returns a copy of the active effects.
func (l *List) All() []Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Instance, len(l.items))
	for i, in := range l.items {
		out[i] = *in
	}
	return out
}

// Tick collects every tick owed up to now, catching up on missed intervals,
// and drops effects that have run their course.
func (l *List) Tick(now time.Time) []Tick {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Tick
	kept := l.items[:0]
	for _, in := range l.items {
		for in.due(now) {
			out = append(out, Tick{ID: in.ID, Kind: in.Kind, Amount: in.Amount})
			in.NextTick = in.NextTick.Add(in.Interval)
		}
		if !in.Done() {
			kept = append(kept, in)
		}
	}
	for i := len(kept); i < len(l.items); i++ {
		l.items[i] = nil
	}
	l.items = kept
	return out
}
