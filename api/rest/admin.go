package rest

import (
	"net/http"
	"runtime"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/audit"
	"github.com/kasuganosora/arenacore/game/player"
	"github.com/kasuganosora/arenacore/game/world"
	"github.com/kasuganosora/arenacore/model"
	"github.com/kasuganosora/arenacore/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by middleware.AdminAuth.
type AdminHandler struct {
	db      *gorm.DB
	svc     *player.Service
	enemies *world.Registry
	sched   *scheduler.Scheduler
	audit   *audit.Service
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler. enemies, sched and auditSvc may be nil.
func NewAdminHandler(
	db *gorm.DB,
	svc *player.Service,
	enemies *world.Registry,
	sched *scheduler.Scheduler,
	auditSvc *audit.Service,
	logger *zap.Logger,
) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{db: db, svc: svc, enemies: enemies, sched: sched, audit: auditSvc, logger: logger}
}

// Metrics returns server health metrics.
// GET /admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	out := gin.H{
		"online_sessions": h.svc.Sessions.Count(),
		"goroutines":      runtime.NumGoroutine(),
	}
	if h.enemies != nil {
		out["enemies"] = h.enemies.Len()
		out["enemies_alive"] = len(h.enemies.Alive())
	}
	if h.sched != nil {
		out["scheduler_tasks"] = h.sched.ListTickers()
	}
	c.JSON(http.StatusOK, out)
}

// ListSessions returns a snapshot of all loaded characters.
// GET /admin/sessions
func (h *AdminHandler) ListSessions(c *gin.Context) {
	sessions := h.svc.Sessions.All()
	type sessionInfo struct {
		CharID    int64   `json:"char_id"`
		AccountID int64   `json:"account_id"`
		CharName  string  `json:"char_name"`
		Level     int     `json:"level"`
		Health    float64 `json:"health"`
		Dirty     bool    `json:"dirty"`
	}
	result := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		rec := s.Record()
		result = append(result, sessionInfo{
			CharID:    s.CharID,
			AccountID: s.AccountID,
			CharName:  rec.Name,
			Level:     rec.Level,
			Health:    rec.CurrentHealth,
			Dirty:     s.Dirty(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": result, "count": len(result)})
}

// KickSession saves and unloads a character.
// DELETE /admin/sessions/:char_id
func (h *AdminHandler) KickSession(c *gin.Context) {
	charID, err := strconv.ParseInt(c.Param("char_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.svc.CloseByID(c.Request.Context(), charID); err != nil {
		if err == player.ErrSessionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "character not loaded"})
			return
		}
		h.logger.Warn("kick saved with error", zap.Int64("char_id", charID), zap.Error(err))
	}
	h.logger.Info("admin kicked session", zap.Int64("char_id", charID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BanAccount bans or unbans a player account.
// POST /admin/accounts/:id/ban
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	status := model.AccountActive
	if req.Ban {
		status = model.AccountBanned
	}
	result := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	if req.Ban {
		for _, s := range h.svc.Sessions.ByAccount(accountID) {
			if err := h.svc.Close(c.Request.Context(), s); err != nil {
				h.logger.Warn("save on ban failed", zap.Int64("char_id", s.CharID), zap.Error(err))
			}
		}
	}
	if h.audit != nil {
		h.audit.Log(audit.AuditEntry{
			AccountID: &accountID,
			Action:    audit.ActionBan,
			Request:   req,
			IP:        c.ClientIP(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// RebuildRanking reloads the ranking sorted set from the DB.
// POST /admin/ranking/rebuild
func (h *AdminHandler) RebuildRanking(c *gin.Context) {
	n, err := h.svc.Store.RebuildRanking(c.Request.Context())
	if err != nil {
		h.logger.Error("ranking rebuild", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuild failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}

// ListSchedulerTasks returns run statistics of all ticker tasks.
// GET /admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	if h.sched == nil {
		c.JSON(http.StatusOK, gin.H{"tasks": []scheduler.TaskInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// Audit lists recent audit entries.
// GET /admin/audit?char_id=&action=&limit=
func (h *AdminHandler) Audit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit disabled"})
		return
	}
	var q audit.Query
	if v := c.Query("char_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid char_id"})
			return
		}
		q.CharID = id
	}
	q.Action = c.Query("action")
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	logs, err := h.audit.Find(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs})
}
