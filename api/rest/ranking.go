package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/game/player"
	"go.uber.org/zap"
)

const rankingTop = 100

// RankingHandler handles leaderboard REST endpoints.
type RankingHandler struct {
	store  *player.Store
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(store *player.Store, logger *zap.Logger) *RankingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingHandler{store: store, logger: logger}
}

// TopLevel returns the top characters by level, then experience.
// GET /api/ranking/level?limit=20
func (h *RankingHandler) TopLevel(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}
	entries, err := h.store.TopByLevel(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("ranking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// Character returns one character's ranked level and experience.
// GET /api/ranking/level/:char_id
func (h *RankingHandler) Character(c *gin.Context) {
	charID, err := strconv.ParseInt(c.Param("char_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid char_id"})
		return
	}
	level, exp, ok, err := h.store.RankOf(c.Request.Context(), charID)
	if err != nil {
		h.logger.Error("ranking lookup", zap.Int64("char_id", charID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not ranked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"char_id": charID, "level": level, "exp": exp})
}
