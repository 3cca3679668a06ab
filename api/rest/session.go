package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/audit"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/player"
	mw "github.com/kasuganosora/arenacore/middleware"
	"go.uber.org/zap"
)

// SessionHandler serves the character session: opening it and every
// action a loaded character can take.
type SessionHandler struct {
	svc    *player.Service
	cache  cache.Cache
	sec    config.SecurityConfig
	audit  *audit.Service
	logger *zap.Logger
}

// NewSessionHandler creates a SessionHandler. auditSvc may be nil.
func NewSessionHandler(svc *player.Service, c cache.Cache, sec config.SecurityConfig, auditSvc *audit.Service, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{svc: svc, cache: c, sec: sec, audit: auditSvc, logger: logger}
}

func rejected(c *gin.Context, reason string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "reason": reason})
}

func (h *SessionHandler) record(c *gin.Context, s *player.Session, action string, started time.Time) {
	if h.audit == nil {
		return
	}
	charID, accountID := s.CharID, s.AccountID
	h.audit.Log(audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		CharID:     &charID,
		AccountID:  &accountID,
		CharName:   s.Record().Name,
		Action:     action,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	})
}

type openSessionRequest struct {
	CharacterID int64 `json:"character_id" binding:"required"`
}

// Open handles POST /api/sessions. It loads the character and returns a
// token bound to it.
func (h *SessionHandler) Open(c *gin.Context) {
	started := time.Now()
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accountID := mw.GetAccountID(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	token, err := issueToken(ctx, h.cache, h.sec, accountID, req.CharacterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	s, err := h.svc.Open(c.Request.Context(), accountID, req.CharacterID, token)
	if err != nil {
		_ = h.cache.Del(ctx, mw.SessionKey(token))
	}
	if errors.Is(err, player.ErrCharacterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	if err != nil {
		h.logger.Error("open session", zap.Int64("char_id", req.CharacterID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.record(c, s, audit.ActionSessionOpen, started)
	h.logger.Info("session opened", zap.Int64("char_id", s.CharID), zap.Int64("account_id", accountID))
	c.JSON(http.StatusOK, gin.H{"token": token, "session": s.View()})
}

// session resolves the caller's loaded character. It writes 401 when the
// token no longer names a live session.
func (h *SessionHandler) session(c *gin.Context) (*player.Session, bool) {
	s := h.svc.Sessions.Get(mw.GetCharID(c))
	if s == nil || s.IsClosed() || s.Token() != mw.GetToken(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// HUD handles GET /api/session.
func (h *SessionHandler) HUD(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// SetPose handles PUT /api/session/pose.
func (h *SessionHandler) SetPose(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var pose combat.Pose
	if err := c.ShouldBindJSON(&pose); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.SetPose(pose)
	c.JSON(http.StatusOK, gin.H{"success": true, "pose": s.Pose()})
}

// Activate handles POST /api/session/skills/:id/activate.
func (h *SessionHandler) Activate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.ActivateSkill(c.Request.Context(), c.Param("id")))
}

// Cooldown handles GET /api/session/skills/:id/cooldown.
func (h *SessionHandler) Cooldown(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	left, known := s.CooldownRemaining(id)
	if !known {
		rejected(c, "unknown skill")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"skill_id":     id,
		"on_cooldown":  left > 0,
		"remaining_ms": left.Milliseconds(),
	})
}

// Upgrade handles POST /api/session/skills/:id/upgrade.
func (h *SessionHandler) Upgrade(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.UpgradeSkill(c.Request.Context(), c.Param("id")) {
		rejected(c, "cannot upgrade")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "skill_points": s.Record().SkillPoints})
}

type assignSlotRequest struct {
	SkillID string `json:"skill_id" binding:"required"`
}

// AssignSlot handles PUT /api/session/hotbar/:slot.
func (h *SessionHandler) AssignSlot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	slot, ok := intParam(c, "slot")
	if !ok {
		return
	}
	var req assignSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.AssignSlot(slot, req.SkillID) {
		rejected(c, "cannot assign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hotbar": s.Record().ActiveSkills})
}

// ClearSlot handles DELETE /api/session/hotbar/:slot.
func (h *SessionHandler) ClearSlot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	slot, ok := intParam(c, "slot")
	if !ok {
		return
	}
	if !s.ClearSlot(slot) {
		rejected(c, "invalid slot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hotbar": s.Record().ActiveSkills})
}

// ActivateSlot handles POST /api/session/hotbar/:slot/activate.
func (h *SessionHandler) ActivateSlot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	slot, ok := intParam(c, "slot")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.ActivateSlot(c.Request.Context(), slot))
}

// UseItem handles POST /api/session/inventory/:index/use.
func (h *SessionHandler) UseItem(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	it, used := s.UseItem(index)
	if !used {
		rejected(c, "cannot use item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": it})
}

// DropItem handles DELETE /api/session/inventory/:index.
func (h *SessionHandler) DropItem(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	it, dropped := s.DropItem(index)
	if !dropped {
		rejected(c, "no such item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": it})
}

type equipRequest struct {
	Index *int `json:"index" binding:"required"`
}

// Equip handles POST /api/session/equipment/:slot.
func (h *SessionHandler) Equip(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.Equip(*req.Index, c.Param("slot")) {
		rejected(c, "cannot equip")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "equipment": s.Record().Equipment})
}

// Unequip handles DELETE /api/session/equipment/:slot.
func (h *SessionHandler) Unequip(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.Unequip(c.Param("slot")) {
		rejected(c, "cannot unequip")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "equipment": s.Record().Equipment})
}

// Save handles POST /api/session/save.
func (h *SessionHandler) Save(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.svc.Save(c.Request.Context(), s); err != nil {
		h.logger.Error("save session", zap.Int64("char_id", s.CharID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Close handles DELETE /api/session: the character is saved and unloaded
// and the session token revoked.
func (h *SessionHandler) Close(c *gin.Context) {
	started := time.Now()
	s, ok := h.session(c)
	if !ok {
		return
	}
	err := h.svc.Close(c.Request.Context(), s)
	h.record(c, s, audit.ActionSessionClose, started)
	if err != nil {
		h.logger.Error("close session", zap.Int64("char_id", s.CharID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "closed"})
}
