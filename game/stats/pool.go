package stats

import "math"

// Pool is a bounded resource (health or mana) with passive regeneration.
// Current always stays within [0, Max].
type Pool struct {
	Current float64
	Max     float64
	Regen   float64 // per second
}

// NewPool returns a full pool.
func NewPool(max, regen float64) Pool {
	return Pool{Current: max, Max: max, Regen: regen}
}

// Tick regenerates the pool for dt seconds. Never decreases Current.
func (p *Pool) Tick(dt float64) {
	if dt <= 0 || p.Regen <= 0 || p.Current >= p.Max {
		return
	}
	p.Current = math.Min(p.Max, p.Current+p.Regen*dt)
}

// Add increases Current by amount, clamped to Max, and returns the new value.
func (p *Pool) Add(amount float64) float64 {
	if amount > 0 {
		p.Current = math.Min(p.Max, p.Current+amount)
	}
	return p.Current
}

// Drain decreases Current by amount, clamped at 0, and returns the amount removed.
func (p *Pool) Drain(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := p.Current
	p.Current = math.Max(0, p.Current-amount)
	return before - p.Current
}

// Use deducts amount only when the pool holds at least that much.
func (p *Pool) Use(amount float64) bool {
	if amount < 0 || p.Current < amount {
		return false
	}
	p.Current -= amount
	return true
}

// Fill restores the pool to Max.
func (p *Pool) Fill() { p.Current = p.Max }

// Clamp re-establishes 0 <= Current <= Max after direct field edits (e.g. on load).
func (p *Pool) Clamp() {
	if p.Max <= 0 {
		p.Max = 1
	}
	if p.Regen < 0 {
		p.Regen = 0
	}
	p.Current = math.Max(0, math.Min(p.Max, p.Current))
}

// Empty reports whether the pool is depleted.
func (p *Pool) Empty() bool { return p.Current <= 0 }

// Vitals groups the health and mana pools of one combatant.
type Vitals struct {
	Health Pool
	Mana   Pool
}

// Tick regenerates both pools.
func (v *Vitals) Tick(dt float64) {
	v.Health.Tick(dt)
	v.Mana.Tick(dt)
}

// MitigatedDamage returns the damage that lands after defense: max(1, amount - defense/2).
func MitigatedDamage(amount float64, defense int) float64 {
	return math.Max(1, amount-float64(defense)/2)
}

// TakeDamage applies defense-mitigated damage to health and returns the mitigated amount.
// Direct damage always lands for at least 1.
func (v *Vitals) TakeDamage(amount float64, defense int) float64 {
	dmg := MitigatedDamage(amount, defense)
	v.Health.Current = math.Max(0, v.Health.Current-dmg)
	return dmg
}

// Heal restores health and returns the new current health.
func (v *Vitals) Heal(amount float64) float64 { return v.Health.Add(amount) }

// RestoreMana restores mana and returns the new current mana.
func (v *Vitals) RestoreMana(amount float64) float64 { return v.Mana.Add(amount) }

// UseMana spends mana if enough is available; otherwise nothing changes.
func (v *Vitals) UseMana(amount float64) bool { return v.Mana.Use(amount) }
