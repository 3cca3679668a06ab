package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/game/player"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CharacterHandler handles character REST endpoints.
type CharacterHandler struct {
	db     *gorm.DB
	svc    *player.Service
	logger *zap.Logger
}

// NewCharacterHandler creates a new CharacterHandler.
func NewCharacterHandler(db *gorm.DB, svc *player.Service, logger *zap.Logger) *CharacterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CharacterHandler{db: db, svc: svc, logger: logger}
}

// List handles GET /api/characters.
func (h *CharacterHandler) List(c *gin.Context) {
	chars, err := h.svc.Store.List(c.Request.Context(), mw.GetAccountID(c))
	if err != nil {
		h.logger.Error("list characters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	type entry struct {
		model.Character
		Online bool `json:"online"`
	}
	out := make([]entry, len(chars))
	for i, ch := range chars {
		out[i] = entry{Character: ch, Online: h.svc.Sessions.IsOnline(ch.ID)}
	}
	c.JSON(http.StatusOK, gin.H{"characters": out})
}

type createCharacterRequest struct {
	Name  string `json:"name"  binding:"required,min=1,max=32"`
	Color string `json:"color" binding:"omitempty,max=16"`
}

// Create handles POST /api/characters.
func (h *CharacterHandler) Create(c *gin.Context) {
	var req createCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.svc.Store.Create(c.Request.Context(), mw.GetAccountID(c), req.Name, req.Color)
	switch {
	case errors.Is(err, player.ErrInvalidName), errors.Is(err, player.ErrTooManyCharacters):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, player.ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("create character", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.logger.Info("character created", zap.Int64("char_id", row.ID), zap.String("name", row.Name))
	c.JSON(http.StatusCreated, row)
}

// Get handles GET /api/characters/:id and returns the flat character
// record. A loaded character is read from its session.
func (h *CharacterHandler) Get(c *gin.Context) {
	charID, ok := h.ownedID(c)
	if !ok {
		return
	}
	if s := h.svc.Sessions.Get(charID); s != nil {
		c.JSON(http.StatusOK, s.Record())
		return
	}
	ch, _, err := h.svc.Store.Load(c.Request.Context(), charID)
	if err != nil {
		h.logger.Error("load character", zap.Int64("char_id", charID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, ch.Record())
}

type deleteCharacterRequest struct {
	Password string `json:"password" binding:"required"`
}

// Delete handles DELETE /api/characters/:id.
func (h *CharacterHandler) Delete(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req deleteCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	var acc model.Account
	if err := h.db.First(&acc, accountID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}

	ctx := c.Request.Context()
	if s := h.svc.Sessions.Get(charID); s != nil && s.AccountID == accountID {
		_ = h.svc.Close(ctx, s)
	}
	err = h.svc.Store.Delete(ctx, accountID, charID)
	if errors.Is(err, player.ErrCharacterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete character", zap.Int64("char_id", charID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ownedID parses :id and checks it belongs to the caller. It writes the
// error response itself.
func (h *CharacterHandler) ownedID(c *gin.Context) (int64, bool) {
	charID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	row, err := h.svc.Store.Get(c.Request.Context(), charID)
	if errors.Is(err, player.ErrCharacterNotFound) || (err == nil && row.AccountID != mw.GetAccountID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return 0, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return 0, false
	}
	return charID, true
}
