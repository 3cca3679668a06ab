package fx

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Event names emitted by the combat core. Receivers use them to play
// animations, sounds and floating numbers; the core never reads a result.
const (
	SkillActivated = "skill_activated"
	SkillUpgraded  = "skill_upgraded"
	Dash           = "dash"
	Projectile     = "projectile"
	Explosion      = "explosion"
	Shockwave      = "shockwave"
	SwordSlash     = "sword_slash"
	HealingAura    = "healing_aura"
	Damage         = "damage"
	Death          = "death"
	XPGained       = "xp_gained"
	LevelUp        = "level_up"
	Heal           = "heal"
	ManaRestore    = "mana_restore"
	ItemUsed       = "item_used"
	Loot           = "loot"

	// Any registers a handler for every event.
	Any = "*"
)

// Event is one fire-and-forget effect trigger.
type Event struct {
	Type     string         `json:"type"`
	CharID   int64          `json:"char_id,omitempty"`
	SkillID  string         `json:"skill_id,omitempty"`
	TargetID string         `json:"target_id,omitempty"`
	Amount   float64        `json:"amount,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Emitter accepts effect triggers.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Handler receives an event. Returned errors are logged and otherwise ignored.
type Handler func(ctx context.Context, ev Event) error

type handlerEntry struct {
	priority int
	fn       Handler
	name     string
}

// Center dispatches events to registered handlers in priority order.
type Center struct {
	mu       sync.RWMutex
	handlers map[string][]*handlerEntry
	logger   *zap.Logger
}

// NewCenter creates a new Center.
func NewCenter(logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{handlers: make(map[string][]*handlerEntry), logger: logger}
}

// Register adds a Handler for event (or Any) with the given priority (lower runs first).
// name is used for Unregister.
func (c *Center) Register(event string, priority int, name string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.handlers[event], &handlerEntry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.handlers[event] = entries
}

// Unregister removes all handlers with the given name for event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = without(c.handlers[event], name)
}

// UnregisterAll removes all handlers registered with name across all events.
func (c *Center) UnregisterAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, entries := range c.handlers {
		c.handlers[event] = without(entries, name)
	}
}

func without(entries []*handlerEntry, name string) []*handlerEntry {
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	return entries[:n]
}

// Emit runs every handler registered for ev.Type, then the Any handlers.
func (c *Center) Emit(ctx context.Context, ev Event) {
	c.mu.RLock()
	entries := make([]*handlerEntry, 0, len(c.handlers[ev.Type])+len(c.handlers[Any]))
	entries = append(entries, c.handlers[ev.Type]...)
	entries = append(entries, c.handlers[Any]...)
	c.mu.RUnlock()

	for _, e := range entries {
		c.run(ctx, e, ev)
	}
}

func (c *Center) run(ctx context.Context, e *handlerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("fx handler panicked",
				zap.String("handler", e.name),
				zap.String("event", ev.Type),
				zap.Any("recover", r))
		}
	}()
	if err := e.fn(ctx, ev); err != nil {
		c.logger.Warn("fx handler failed",
			zap.String("handler", e.name),
			zap.String("event", ev.Type),
			zap.Error(err))
	}
}

// Recorder keeps every emitted event in memory for later inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events with the given type.
func (r *Recorder) OfType(t string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
