package combat

import (
	"context"

	"github.com/kasuganosora/arenacore/game/fx"
)

// Default resolution parameters.
const (
	DefaultMeleeRange = 2.0
	DefaultKillXP     = 20
	projectileLead    = 1.0 // projectiles spawn this far in front of the caster
)

// Target is a damageable entity in the target registry.
type Target interface {
	TargetID() string
	Position() Vec3
	SetPosition(Vec3)
	IsDead() bool
	// ApplyDamage subtracts raw damage and returns the health left.
	ApplyDamage(amount float64) float64
	// MarkDead flags the target dead and reports whether this call did it.
	MarkDead() bool
}

// TargetSet exposes the live targets for one resolution pass.
type TargetSet interface {
	Targets() []Target
}

// Rewarder receives experience for kills.
type Rewarder interface {
	GainExperience(amount int) bool
}

// Attack describes one damaging action.
type Attack struct {
	CasterID int64
	SkillID  string
	Pose     Pose
	Damage   float64
	Reward   Rewarder
}

// Result summarises a resolution pass.
type Result struct {
	Hits    int      `json:"hits"`
	Kills   int      `json:"kills"`
	Damage  float64  `json:"damage"`
	XP      int      `json:"xp"`
	LevelUp bool     `json:"level_up"`
	HitIDs  []string `json:"hit_ids,omitempty"`
	KillIDs []string `json:"kill_ids,omitempty"`
}

// Resolver applies skill damage to targets and hands out kill rewards.
// Damage here is raw: defense mitigation only applies to a character's own TakeDamage.
type Resolver struct {
	KillXP int
	fx     fx.Emitter
}

// NewResolver creates a Resolver that reports effects to em.
func NewResolver(em fx.Emitter) *Resolver {
	if em == nil {
		em = fx.Discard
	}
	return &Resolver{KillXP: DefaultKillXP, fx: em}
}

// Melee hits every live target strictly closer than rng on the ground plane.
func (r *Resolver) Melee(ctx context.Context, atk Attack, set TargetSet, rng float64) Result {
	var res Result
	if set == nil {
		return res
	}
	for _, t := range set.Targets() {
		if t.IsDead() {
			continue
		}
		if atk.Pose.Position.PlanarDistance(t.Position()) < rng {
			r.hit(ctx, atk, t, &res)
		}
	}
	return res
}

// Area hits every live target within radius and pushes it away by knockback units.
func (r *Resolver) Area(ctx context.Context, atk Attack, set TargetSet, radius, knockback float64) Result {
	var res Result
	if set == nil {
		return res
	}
	origin := atk.Pose.Position.Flat()
	for _, t := range set.Targets() {
		if t.IsDead() {
			continue
		}
		pos := t.Position()
		if origin.PlanarDistance(pos) > radius {
			continue
		}
		r.hit(ctx, atk, t, &res)
		if knockback > 0 {
			push := pos.Flat().Sub(origin).Normalize().Scale(knockback)
			t.SetPosition(pos.Add(push))
		}
	}
	return res
}

// Projectile flies from the caster along its facing in steps of speed units and
// hits the first live target within hitRadius of the projectile, or nothing
// once maxDistance has been travelled.
func (r *Resolver) Projectile(ctx context.Context, atk Attack, set TargetSet, speed, hitRadius, maxDistance float64) Result {
	var res Result
	if set == nil || speed <= 0 {
		return res
	}
	dir := atk.Pose.Direction()
	pos := atk.Pose.Position.Add(dir.Scale(projectileLead))
	targets := set.Targets()
	for travelled := 0.0; travelled < maxDistance; travelled += speed {
		pos = pos.Add(dir.Scale(speed))
		for _, t := range targets {
			if t.IsDead() {
				continue
			}
			if pos.Distance(t.Position()) < hitRadius {
				r.hit(ctx, atk, t, &res)
				r.fx.Emit(ctx, fx.Event{
					Type:    fx.Explosion,
					CharID:  atk.CasterID,
					SkillID: atk.SkillID,
					Data:    map[string]any{"position": pos},
				})
				return res
			}
		}
	}
	return res
}

func (r *Resolver) hit(ctx context.Context, atk Attack, t Target, res *Result) {
	left := t.ApplyDamage(atk.Damage)
	res.Hits++
	res.Damage += atk.Damage
	res.HitIDs = append(res.HitIDs, t.TargetID())
	r.fx.Emit(ctx, fx.Event{
		Type:     fx.Damage,
		CharID:   atk.CasterID,
		SkillID:  atk.SkillID,
		TargetID: t.TargetID(),
		Amount:   atk.Damage,
	})
	if left > 0 || !t.MarkDead() {
		return
	}
	res.Kills++
	res.KillIDs = append(res.KillIDs, t.TargetID())
	r.fx.Emit(ctx, fx.Event{
		Type:     fx.Death,
		CharID:   atk.CasterID,
		SkillID:  atk.SkillID,
		TargetID: t.TargetID(),
		Data:     map[string]any{"position": t.Position()},
	})
	if atk.Reward == nil || r.KillXP <= 0 {
		return
	}
	res.XP += r.KillXP
	if atk.Reward.GainExperience(r.KillXP) {
		res.LevelUp = true
	}
	r.fx.Emit(ctx, fx.Event{
		Type:     fx.XPGained,
		CharID:   atk.CasterID,
		TargetID: t.TargetID(),
		Amount:   float64(r.KillXP),
	})
}
