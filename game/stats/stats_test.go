package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---- Pool ----

func TestPool_Tick_Regenerates(t *testing.T) {
	p := Pool{Current: 50, Max: 100, Regen: 2}
	p.Tick(5)
	assert.Equal(t, 60.0, p.Current)
}

func TestPool_Tick_ClampedToMax(t *testing.T) {
	p := Pool{Current: 99, Max: 100, Regen: 10}
	p.Tick(1)
	assert.Equal(t, 100.0, p.Current)
}

func TestPool_Tick_ZeroIsNoop(t *testing.T) {
	p := Pool{Current: 42.5, Max: 100, Regen: 3}
	p.Tick(0)
	assert.Equal(t, 42.5, p.Current)
}

func TestPool_Tick_NegativeIgnored(t *testing.T) {
	p := Pool{Current: 42, Max: 100, Regen: 3}
	p.Tick(-10)
	assert.Equal(t, 42.0, p.Current)
}

func TestPool_Use_Sufficient(t *testing.T) {
	p := NewPool(50, 0.5)
	assert.True(t, p.Use(15))
	assert.Equal(t, 35.0, p.Current)
}

func TestPool_Use_InsufficientLeavesStateUnchanged(t *testing.T) {
	p := Pool{Current: 10, Max: 50}
	assert.False(t, p.Use(15))
	assert.Equal(t, 10.0, p.Current)
}

func TestPool_Use_Exact(t *testing.T) {
	p := Pool{Current: 15, Max: 50}
	assert.True(t, p.Use(15))
	assert.Equal(t, 0.0, p.Current)
}

func TestPool_Drain(t *testing.T) {
	p := Pool{Current: 10, Max: 50}
	assert.Equal(t, 10.0, p.Drain(25))
	assert.Equal(t, 0.0, p.Current)
}

func TestPool_Clamp(t *testing.T) {
	p := Pool{Current: 500, Max: 100, Regen: -1}
	p.Clamp()
	assert.Equal(t, 100.0, p.Current)
	assert.Equal(t, 0.0, p.Regen)
}

// ---- Vitals ----

func TestVitals_TakeDamage_Property(t *testing.T) {
	for _, defense := range []int{0, 1, 5, 20, 100} {
		for _, amount := range []float64{0, 0.5, 1, 3, 7.5, 20, 99, 250} {
			v := Vitals{Health: NewPool(100, 1)}
			prev := v.Health.Current
			applied := v.TakeDamage(amount, defense)
			want := math.Max(1, amount-float64(defense)/2)
			assert.Equal(t, want, applied, "amount=%v defense=%d", amount, defense)
			assert.Equal(t, math.Max(0, prev-want), v.Health.Current, "amount=%v defense=%d", amount, defense)
		}
	}
}

func TestVitals_TakeDamage_FloorOfOne(t *testing.T) {
	v := Vitals{Health: NewPool(100, 1)}
	applied := v.TakeDamage(2, 50)
	assert.Equal(t, 1.0, applied)
	assert.Equal(t, 99.0, v.Health.Current)
}

func TestVitals_TakeDamage_ClampsAtZero(t *testing.T) {
	v := Vitals{Health: Pool{Current: 5, Max: 100}}
	v.TakeDamage(1000, 5)
	assert.Equal(t, 0.0, v.Health.Current)
	assert.True(t, v.Health.Empty())
}

func TestVitals_Heal_Property(t *testing.T) {
	for _, prev := range []float64{0, 10, 95, 100} {
		for _, amount := range []float64{0, 1, 5, 10, 500} {
			v := Vitals{Health: Pool{Current: prev, Max: 100}}
			got := v.Heal(amount)
			assert.LessOrEqual(t, got, 100.0)
			assert.Equal(t, math.Min(100, prev+amount), got)
		}
	}
}

func TestVitals_Tick_BothPools(t *testing.T) {
	v := Vitals{
		Health: Pool{Current: 10, Max: 100, Regen: 1},
		Mana:   Pool{Current: 10, Max: 50, Regen: 0.5},
	}
	v.Tick(2)
	assert.Equal(t, 12.0, v.Health.Current)
	assert.Equal(t, 11.0, v.Mana.Current)
}

// ---- Track ----

type growthRecorder struct {
	calls  int
	level  int
	growth Growth
}

func (g *growthRecorder) ApplyGrowth(gr Growth, lvl int) {
	g.calls++
	g.level = lvl
	g.growth = gr
}

func TestTrack_LevelUp(t *testing.T) {
	tr := Track{Level: 1, Experience: 90, ExperienceToNext: 100}
	rec := &growthRecorder{}
	assert.True(t, tr.GainExperience(20, rec))
	assert.Equal(t, 2, tr.Level)
	assert.Equal(t, 10, tr.Experience)
	assert.Equal(t, 150, tr.ExperienceToNext)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 2, rec.level)
	assert.Equal(t, DefaultGrowth, rec.growth)
}

func TestTrack_NoLevelUpBelowThreshold(t *testing.T) {
	tr := NewTrack()
	assert.False(t, tr.GainExperience(99, nil))
	assert.Equal(t, 1, tr.Level)
	assert.Equal(t, 99, tr.Experience)
}

func TestTrack_SingleLevelPerGain(t *testing.T) {
	tr := NewTrack()
	rec := &growthRecorder{}
	tr.GainExperience(1000, rec)
	assert.Equal(t, 2, tr.Level)
	assert.Equal(t, 900, tr.Experience)
	assert.Equal(t, 1, rec.calls)

	// banked surplus is consumed by subsequent checks
	assert.True(t, tr.CheckLevelUp(rec))
	assert.Equal(t, 3, tr.Level)
	assert.Equal(t, 750, tr.Experience)
	assert.Equal(t, 225, tr.ExperienceToNext)
}

func TestTrack_ThresholdRoundsDown(t *testing.T) {
	tr := Track{Level: 3, Experience: 225, ExperienceToNext: 225}
	tr.CheckLevelUp(nil)
	assert.Equal(t, 337, tr.ExperienceToNext)
}

func TestTrack_NegativeExperienceIgnored(t *testing.T) {
	tr := NewTrack()
	tr.GainExperience(-50, nil)
	assert.Equal(t, 0, tr.Experience)
}

func TestTrack_Normalize(t *testing.T) {
	tr := Track{}
	tr.Normalize()
	assert.Equal(t, NewTrack(), tr)
}
