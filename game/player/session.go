package player

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/kasuganosora/arenacore/game/character"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/effect"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/item"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/game/world"
	"go.uber.org/zap"
)

// maxFrameDt caps the regeneration step of a single frame so a stalled
// ticker cannot grant a burst of health.
const maxFrameDt = 1.0

// Arena is the state every session acts on.
type Arena struct {
	Enemies  *world.Registry
	Items    *item.Catalog
	Resolver *combat.Resolver
	FX       fx.Emitter
	// Formulas evaluates skill formulas; nil uses the built-in grammar.
	Formulas combat.Evaluator
	// Roll returns a loot roll in [0,1). Nil uses math/rand.
	Roll func() float64
}

func (a *Arena) emitter() fx.Emitter {
	if a == nil || a.FX == nil {
		return fx.Discard
	}
	return a.FX
}

func (a *Arena) roll() float64 {
	if a.Roll != nil {
		return a.Roll()
	}
	return rand.Float64()
}

// Session is one loaded character. Frame ticks and input events both take
// the session lock, so the character sees them one at a time.
type Session struct {
	AccountID int64
	CharID    int64
	Done      chan struct{}

	mu       sync.Mutex
	token    string
	char     *character.Character
	pose     combat.Pose
	arena    *Arena
	lastTick time.Time
	lastSeq  uint64
	dirty    bool
	logger   *zap.Logger
}

// NewSession wraps c, which must already carry its persistent id.
func NewSession(accountID int64, c *character.Character, arena *Arena, logger *zap.Logger) *Session {
	if arena == nil {
		arena = &Arena{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c.AttachFX(arena.emitter())
	return &Session{
		AccountID: accountID,
		CharID:    c.CharacterID(),
		Done:      make(chan struct{}),
		char:      c,
		arena:     arena,
		lastTick:  time.Now(),
		logger:    logger.With(zap.Int64("char_id", c.CharacterID())),
	}
}

// Close cancels pending timed effects and signals Done. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.Done:
		return
	default:
	}
	if n := s.char.Effects().CancelAll(); n > 0 {
		s.logger.Debug("timed effects cancelled", zap.Int("count", n))
	}
	close(s.Done)
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// Token returns the bearer token that owns the session.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken sets the owning token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// ReplaceToken swaps old for next if old still owns the session.
func (s *Session) ReplaceToken(old, next string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != old {
		return false
	}
	s.token = next
	return true
}

// AcceptSeq enforces monotonic input sequence numbers. Zero disables the check.
func (s *Session) AcceptSeq(seq uint64) bool {
	if seq == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.lastSeq {
		return false
	}
	s.lastSeq = seq
	return true
}

// Tick advances the character to now.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IsClosed() {
		return
	}
	dt := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	if dt <= 0 {
		return
	}
	ticks := s.char.Tick(min(dt, maxFrameDt), now)
	em := s.arena.emitter()
	for _, t := range ticks {
		ev := fx.Event{Type: fx.Heal, CharID: s.CharID, SkillID: strings.TrimPrefix(t.ID, "skill:"), Amount: t.Amount}
		if t.Kind == effect.KindMana {
			ev.Type = fx.ManaRestore
		}
		em.Emit(ctx, ev)
	}
	if len(ticks) > 0 {
		s.dirty = true
	}
}

// Pose returns the character's position and facing.
func (s *Session) Pose() combat.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// SetPose records the client-reported position and facing.
func (s *Session) SetPose(p combat.Pose) {
	s.mu.Lock()
	s.pose = p
	s.mu.Unlock()
}

// Outcome is an activation plus the loot its kills dropped.
type Outcome struct {
	skill.Activation
	Loot []item.Item `json:"loot,omitempty"`
}

// ActivateSkill runs skill id from the current pose against the arena.
func (s *Session) ActivateSkill(ctx context.Context, id string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	act := s.char.Skills.Activate(ctx, id, s.char, s.gameContext())
	return s.finish(ctx, act)
}

// ActivateSlot runs the skill in hot-bar slot.
func (s *Session) ActivateSlot(ctx context.Context, slot int) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	act := s.char.Skills.ActivateSlot(ctx, slot, s.char, s.gameContext())
	return s.finish(ctx, act)
}

func (s *Session) gameContext() skill.GameContext {
	return skill.GameContext{
		Now:      time.Now(),
		Pose:     &s.pose,
		Targets:  s.arena.Enemies,
		Resolver: s.arena.Resolver,
		FX:       s.arena.emitter(),
		Formulas: s.arena.Formulas,
	}
}

func (s *Session) finish(ctx context.Context, act skill.Activation) Outcome {
	out := Outcome{Activation: act}
	if act.ManaSpent > 0 {
		s.dirty = true
	}
	if !act.Success {
		s.logger.Debug("skill refused", zap.String("skill_id", act.SkillID), zap.String("reason", act.Reason))
		return out
	}
	for _, id := range act.Result.KillIDs {
		if it, ok := s.dropLoot(id); ok {
			out.Loot = append(out.Loot, it)
			s.arena.emitter().Emit(ctx, fx.Event{
				Type:     fx.Loot,
				CharID:   s.CharID,
				TargetID: id,
				Data:     map[string]any{"item_id": it.ID, "name": it.Name},
			})
		}
	}
	return out
}

// dropLoot rolls the killed enemy's loot chance and bags the drop. A full
// bag loses it.
func (s *Session) dropLoot(enemyID string) (item.Item, bool) {
	if s.arena.Enemies == nil || s.arena.Items == nil {
		return item.Item{}, false
	}
	e := s.arena.Enemies.Get(enemyID)
	if e == nil || s.arena.roll() >= e.Template.LootChance {
		return item.Item{}, false
	}
	it, ok := s.arena.Items.RandomLoot(nil)
	if !ok || !s.char.AddItem(it) {
		return item.Item{}, false
	}
	return it, true
}

// UpgradeSkill spends a skill point on id.
func (s *Session) UpgradeSkill(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.char.Skills.Upgrade(id) {
		return false
	}
	s.dirty = true
	sk, _ := s.char.Skills.Get(id)
	s.arena.emitter().Emit(ctx, fx.Event{
		Type:    fx.SkillUpgraded,
		CharID:  s.CharID,
		SkillID: id,
		Amount:  float64(sk.Level),
		Data:    map[string]any{"level": sk.Level, "skill_points": s.char.Skills.Points()},
	})
	return true
}

// CooldownRemaining reports how long id still cools down. ok is false for
// unknown skills.
func (s *Session) CooldownRemaining(id string) (remaining time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.char.Skills.Get(id); !ok {
		return 0, false
	}
	return s.char.Skills.CooldownRemaining(id, time.Now()), true
}

// AssignSlot puts skill id in hot-bar slot.
func (s *Session) AssignSlot(slot int, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.char.Skills.Assign(slot, id, s.char.Level())
	s.dirty = s.dirty || ok
	return ok
}

// ClearSlot empties hot-bar slot.
func (s *Session) ClearSlot(slot int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.char.Skills.Clear(slot)
	s.dirty = s.dirty || ok
	return ok
}

// UseItem consumes the bag item at index.
func (s *Session) UseItem(index int) (item.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.char.UseItem(index)
	s.dirty = s.dirty || ok
	return it, ok
}

// DropItem discards the bag item at index.
func (s *Session) DropItem(index int) (item.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.char.DropItem(index)
	s.dirty = s.dirty || ok
	return it, ok
}

// Equip moves the bag item at index into slot.
func (s *Session) Equip(index int, slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.char.EquipFromInventory(index, slot)
	s.dirty = s.dirty || ok
	return ok
}

// Unequip moves the item in slot back to the bag.
func (s *Session) Unequip(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.char.UnequipToInventory(slot)
	s.dirty = s.dirty || ok
	return ok
}

// TakeDamage applies incoming damage to the character.
func (s *Session) TakeDamage(amount float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	return s.char.TakeDamage(amount)
}

// Record snapshots the persistent character state.
func (s *Session) Record() character.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.char.Record()
}

// Dirty reports whether the character changed since the last MarkSaved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkSaved clears the dirty flag.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// cooldownSnapshot returns ready-at times of running cooldowns.
func (s *Session) cooldownSnapshot(now time.Time) map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.char.Skills.Cooldowns().Snapshot(now)
}

func (s *Session) restoreCooldowns(readyAt map[string]time.Time, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.char.Skills.Cooldowns().Restore(readyAt, now)
}
