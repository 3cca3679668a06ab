package stats

// Default progression values for a fresh character.
const (
	DefaultLevel            = 1
	DefaultExperienceToNext = 100

	// experience threshold grows by this factor per level, rounded down
	thresholdGrowth = 1.5
)

// Growth is the stat package applied on every level-up.
type Growth struct {
	MaxHealth   float64
	MaxMana     float64
	Strength    int
	Defense     int
	Speed       int
	HealthRegen float64
	ManaRegen   float64
}

// DefaultGrowth is the fixed per-level growth package.
var DefaultGrowth = Growth{
	MaxHealth:   10,
	MaxMana:     5,
	Strength:    2,
	Defense:     1,
	Speed:       1,
	HealthRegen: 0.2,
	ManaRegen:   0.1,
}

// Grower receives the growth package when a Track levels up.
type Grower interface {
	ApplyGrowth(g Growth, newLevel int)
}

// Track holds level and experience.
type Track struct {
	Level            int
	Experience       int
	ExperienceToNext int
}

// NewTrack returns a level 1 track.
func NewTrack() Track {
	return Track{Level: DefaultLevel, ExperienceToNext: DefaultExperienceToNext}
}

// GainExperience adds amount and checks for a level-up once.
// A grant that crosses several thresholds still levels up only once per call;
// the surplus stays banked until the next grant.
func (t *Track) GainExperience(amount int, owner Grower) bool {
	if amount > 0 {
		t.Experience += amount
	}
	return t.CheckLevelUp(owner)
}

// CheckLevelUp applies a single level-up if the threshold is reached.
func (t *Track) CheckLevelUp(owner Grower) bool {
	if t.ExperienceToNext <= 0 || t.Experience < t.ExperienceToNext {
		return false
	}
	t.Experience -= t.ExperienceToNext
	t.ExperienceToNext = int(float64(t.ExperienceToNext) * thresholdGrowth)
	t.Level++
	if owner != nil {
		owner.ApplyGrowth(DefaultGrowth, t.Level)
	}
	return true
}

// Normalize restores the track invariants after loading partial data.
func (t *Track) Normalize() {
	if t.Level < 1 {
		t.Level = DefaultLevel
	}
	if t.Experience < 0 {
		t.Experience = 0
	}
	if t.ExperienceToNext <= 0 {
		t.ExperienceToNext = DefaultExperienceToNext
	}
}
