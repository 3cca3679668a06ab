package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/game/character"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RankingKey is the sorted set ranking characters by level, then experience.
const RankingKey = "ranking:level"

// MaxCharacters is the per-account character limit.
const MaxCharacters = 3

var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrNameTaken         = errors.New("character name already taken")
	ErrInvalidName       = errors.New("character name must be 1-32 characters")
	ErrTooManyCharacters = errors.New("max characters reached")
)

// rankScore orders by level first; experience never reaches the next
// level's band since it resets on level-up.
func rankScore(level int, exp int64) float64 {
	return float64(level)*1e9 + float64(exp)
}

// Store persists characters as JSON snapshots with the level and
// experience copied into indexed columns.
type Store struct {
	db     *gorm.DB
	cache  cache.Cache
	defs   []skill.Skill
	logger *zap.Logger
}

// NewStore creates a Store. defs are the skill definitions characters are
// rebuilt with.
func NewStore(db *gorm.DB, c cache.Cache, defs []skill.Skill, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, cache: c, defs: defs, logger: logger}
}

// Create stores a new level 1 character for accountID.
func (st *Store) Create(ctx context.Context, accountID int64, name, color string) (*model.Character, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > 32 {
		return nil, ErrInvalidName
	}
	var count int64
	if err := st.db.WithContext(ctx).Model(&model.Character{}).
		Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count characters: %w", err)
	}
	if count >= MaxCharacters {
		return nil, ErrTooManyCharacters
	}

	c := character.New(name, color, st.defs)
	snap, err := json.Marshal(c.Record())
	if err != nil {
		return nil, fmt.Errorf("encode character: %w", err)
	}
	row := &model.Character{
		AccountID: accountID,
		Name:      name,
		Color:     color,
		Level:     c.Level(),
		Exp:       int64(c.Track.Experience),
		Snapshot:  datatypes.JSON(snap),
	}
	if err := st.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("create character: %w", err)
	}
	st.rank(ctx, row.ID, row.Level, row.Exp)
	return row, nil
}

// List returns accountID's characters.
func (st *Store) List(ctx context.Context, accountID int64) ([]model.Character, error) {
	var rows []model.Character
	err := st.db.WithContext(ctx).
		Select("id, account_id, name, color, level, exp, created_at, updated_at").
		Where("account_id = ?", accountID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return rows, nil
}

// Get returns the stored row for id.
func (st *Store) Get(ctx context.Context, id int64) (*model.Character, error) {
	var row model.Character
	err := st.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get character %d: %w", id, err)
	}
	return &row, nil
}

// Load rebuilds the character stored under id.
func (st *Store) Load(ctx context.Context, id int64) (*character.Character, *model.Character, error) {
	row, err := st.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var c *character.Character
	if len(row.Snapshot) == 0 {
		c = character.New(row.Name, row.Color, st.defs)
	} else if c, err = character.FromJSON(row.Snapshot, st.defs); err != nil {
		return nil, nil, fmt.Errorf("decode character %d: %w", id, err)
	}
	c.SetID(row.ID)
	return c, row, nil
}

// Save writes rec over the stored snapshot of id and refreshes its rank.
func (st *Store) Save(ctx context.Context, id int64, rec character.Record) error {
	snap, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode character %d: %w", id, err)
	}
	res := st.db.WithContext(ctx).Model(&model.Character{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"level":    rec.Level,
			"exp":      rec.Experience,
			"snapshot": datatypes.JSON(snap),
		})
	if res.Error != nil {
		return fmt.Errorf("save character %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCharacterNotFound
	}
	st.rank(ctx, id, rec.Level, int64(rec.Experience))
	return nil
}

// Delete removes accountID's character id.
func (st *Store) Delete(ctx context.Context, accountID, id int64) error {
	res := st.db.WithContext(ctx).Where("id = ? AND account_id = ?", id, accountID).Delete(&model.Character{})
	if res.Error != nil {
		return fmt.Errorf("delete character %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCharacterNotFound
	}
	member := strconv.FormatInt(id, 10)
	if err := st.cache.ZRem(ctx, RankingKey, member); err != nil {
		st.logger.Warn("ranking remove failed", zap.Int64("char_id", id), zap.Error(err))
	}
	_ = st.cache.Del(ctx, CooldownKey(id))
	return nil
}

func (st *Store) rank(ctx context.Context, id int64, level int, exp int64) {
	if err := st.cache.ZAdd(ctx, RankingKey, rankScore(level, exp), strconv.FormatInt(id, 10)); err != nil {
		st.logger.Warn("ranking update failed", zap.Int64("char_id", id), zap.Error(err))
	}
}

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank     int    `json:"rank"`
	CharID   int64  `json:"char_id"`
	CharName string `json:"char_name"`
	Level    int    `json:"level"`
	Exp      int64  `json:"exp"`
}

// TopByLevel returns the best limit characters. The cache sorted set is
// used when populated; otherwise the DB is queried and the set refilled.
func (st *Store) TopByLevel(ctx context.Context, limit int) ([]RankEntry, error) {
	members, err := st.cache.ZRevRange(ctx, RankingKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			if id, err := strconv.ParseInt(m, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		var rows []model.Character
		if err := st.db.WithContext(ctx).Select("id, name, level, exp").
			Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("ranking names: %w", err)
		}
		byID := make(map[int64]model.Character, len(rows))
		for _, r := range rows {
			byID[r.ID] = r
		}
		entries := make([]RankEntry, 0, len(ids))
		for _, id := range ids {
			r, ok := byID[id]
			if !ok {
				continue
			}
			entries = append(entries, RankEntry{Rank: len(entries) + 1, CharID: id, CharName: r.Name, Level: r.Level, Exp: r.Exp})
		}
		return entries, nil
	}

	var rows []model.Character
	if err := st.db.WithContext(ctx).Select("id, name, level, exp").
		Order("level DESC, exp DESC, id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ranking query: %w", err)
	}
	entries := make([]RankEntry, len(rows))
	for i, r := range rows {
		entries[i] = RankEntry{Rank: i + 1, CharID: r.ID, CharName: r.Name, Level: r.Level, Exp: r.Exp}
		st.rank(ctx, r.ID, r.Level, r.Exp)
	}
	return entries, nil
}

// RankOf reads charID's level and experience from the ranking set.
// ok is false when the character is not ranked.
func (st *Store) RankOf(ctx context.Context, charID int64) (level int, exp int64, ok bool, err error) {
	score, err := st.cache.ZScore(ctx, RankingKey, strconv.FormatInt(charID, 10))
	if cache.IsNotFound(err) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("ranking score: %w", err)
	}
	level = int(score / 1e9)
	return level, int64(score - float64(level)*1e9), true, nil
}

// RebuildRanking reloads the sorted set from the DB.
func (st *Store) RebuildRanking(ctx context.Context) (int, error) {
	var rows []model.Character
	if err := st.db.WithContext(ctx).Select("id, level, exp").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("ranking rebuild: %w", err)
	}
	if err := st.cache.Del(ctx, RankingKey); err != nil {
		return 0, fmt.Errorf("ranking clear: %w", err)
	}
	for _, r := range rows {
		st.rank(ctx, r.ID, r.Level, r.Exp)
	}
	return len(rows), nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
