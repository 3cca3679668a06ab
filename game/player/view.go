package player

import (
	"time"

	"github.com/kasuganosora/arenacore/game/character"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/effect"
	"github.com/kasuganosora/arenacore/game/world"
)

// SkillView is one hot-bar or skill-book entry as the HUD shows it.
type SkillView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Level          int     `json:"level"`
	MaxLevel       int     `json:"max_level"`
	ManaCost       float64 `json:"mana_cost"`
	RequiredLevel  int     `json:"required_level"`
	CooldownLeftMs int64   `json:"cooldown_left_ms"`
}

// View is the HUD snapshot of a session.
type View struct {
	CharID    int64             `json:"char_id"`
	Character character.Record  `json:"character"`
	Pose      combat.Pose       `json:"pose"`
	Skills    []SkillView       `json:"skills"`
	Effects   []effect.Instance `json:"effects"`
	Enemies   []world.View      `json:"enemies"`
}

// View snapshots the session for the HUD.
func (s *Session) View() View {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.char.Skills.List()
	skills := make([]SkillView, 0, len(book))
	for _, sk := range book {
		skills = append(skills, SkillView{
			ID:             sk.ID,
			Name:           sk.Name,
			Level:          sk.Level,
			MaxLevel:       sk.MaxLevel,
			ManaCost:       sk.ManaCost,
			RequiredLevel:  sk.RequiredLevel,
			CooldownLeftMs: s.char.Skills.CooldownRemaining(sk.ID, now).Milliseconds(),
		})
	}
	v := View{
		CharID:    s.CharID,
		Character: s.char.Record(),
		Pose:      s.pose,
		Skills:    skills,
		Effects:   s.char.Effects().All(),
	}
	if s.arena.Enemies != nil {
		v.Enemies = s.arena.Enemies.Views()
	}
	return v
}
