package skill

import (
	"context"
	"sync"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/effect"
	"github.com/kasuganosora/arenacore/game/fx"
)

// Invocation is everything an effect handler sees for one activation.
type Invocation struct {
	Skill  Skill
	Caster Caster
	Game   GameContext
	Vars   combat.Vars
}

// Num evaluates one of the skill's formulas for this invocation.
func (in *Invocation) Num(formula string) float64 {
	if in.Game.Formulas == nil {
		return combat.EvalOrZero(formula, in.Vars)
	}
	out, err := in.Game.Formulas.Eval(formula, in.Vars)
	if err != nil {
		return 0
	}
	return out
}

func (in *Invocation) attack(damage float64) combat.Attack {
	var pose combat.Pose
	if in.Game.Pose != nil {
		pose = *in.Game.Pose
	}
	return combat.Attack{
		CasterID: in.Caster.CharacterID(),
		SkillID:  in.Skill.ID,
		Pose:     pose,
		Damage:   damage,
		Reward:   in.Caster,
	}
}

// EffectHandler runs a skill effect. The bool reports success; a failed
// effect keeps its mana spent but starts no cooldown.
type EffectHandler func(ctx context.Context, in *Invocation) (combat.Result, bool)

var (
	kindMu   sync.RWMutex
	handlers = map[string]EffectHandler{
		KindDash:         dashEffect,
		KindProjectile:   projectileEffect,
		KindHealOverTime: healOverTimeEffect,
		KindArea:         areaEffect,
		KindMelee:        meleeEffect,
	}
)

// RegisterKind installs the handler for an effect kind.
func RegisterKind(kind string, h EffectHandler) {
	kindMu.Lock()
	defer kindMu.Unlock()
	handlers[kind] = h
}

// KnownKind reports whether a handler exists for kind.
func KnownKind(kind string) bool {
	kindMu.RLock()
	defer kindMu.RUnlock()
	_, ok := handlers[kind]
	return ok
}

func handlerFor(kind string) (EffectHandler, bool) {
	kindMu.RLock()
	defer kindMu.RUnlock()
	h, ok := handlers[kind]
	return h, ok
}

// dashEffect moves the caster forward along its facing.
func dashEffect(ctx context.Context, in *Invocation) (combat.Result, bool) {
	pose := in.Game.Pose
	if pose == nil {
		return combat.Result{}, false
	}
	dir := pose.Direction()
	pose.Position = pose.Position.Add(dir.Scale(in.Num(in.Skill.Effect.Distance)))
	return combat.Result{}, true
}

func projectileEffect(ctx context.Context, in *Invocation) (combat.Result, bool) {
	spec := in.Skill.Effect
	res := in.Game.resolver().Projectile(ctx, in.attack(in.Num(spec.Damage)), in.Game.Targets,
		in.Num(spec.Speed), in.Num(spec.HitRadius), in.Num(spec.MaxDistance))
	return res, true
}

// healOverTimeEffect heals at once, then every interval for the duration.
// The periodic part lives on the caster's effect list so it dies with the caster.
func healOverTimeEffect(ctx context.Context, in *Invocation) (combat.Result, bool) {
	spec := in.Skill.Effect
	amount := in.Num(spec.Amount)
	if amount > 0 {
		in.Caster.Heal(amount)
		in.Game.emitter().Emit(ctx, fx.Event{
			Type:    fx.Heal,
			CharID:  in.Caster.CharacterID(),
			SkillID: in.Skill.ID,
			Amount:  amount,
		})
	}
	interval := seconds(in.Num(spec.Interval))
	duration := seconds(in.Num(spec.Duration))
	if tick := in.Num(spec.TickAmount); tick > 0 && interval > 0 && duration > 0 {
		in.Caster.Effects().Add("skill:"+in.Skill.ID, effect.KindHeal, tick, interval, duration, in.Game.now())
	}
	return combat.Result{}, true
}

// areaEffect hits everything around the caster. With RequireHit set it
// succeeds only when something was hit; without a target registry there is
// nothing to miss.
func areaEffect(ctx context.Context, in *Invocation) (combat.Result, bool) {
	spec := in.Skill.Effect
	if in.Game.Targets == nil {
		return combat.Result{}, true
	}
	res := in.Game.resolver().Area(ctx, in.attack(in.Num(spec.Damage)), in.Game.Targets,
		in.Num(spec.Radius), in.Num(spec.Knockback))
	if spec.RequireHit {
		return res, res.Hits > 0
	}
	return res, true
}

func meleeEffect(ctx context.Context, in *Invocation) (combat.Result, bool) {
	spec := in.Skill.Effect
	rng := in.Num(spec.Range)
	if rng <= 0 {
		rng = combat.DefaultMeleeRange
	}
	return in.Game.resolver().Melee(ctx, in.attack(in.Num(spec.Damage)), in.Game.Targets, rng), true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
