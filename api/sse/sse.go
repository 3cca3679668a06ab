package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/player"
	mw "github.com/kasuganosora/arenacore/middleware"
	"go.uber.org/zap"
)

const (
	announceChannel   = "announce"
	keepaliveInterval = 30 * time.Second
)

// Handler streams a character's fx events and server announcements.
type Handler struct {
	pubsub    cache.PubSub
	sm        *player.SessionManager
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, sm *player.SessionManager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, sm: sm, keepalive: keepaliveInterval, logger: logger}
}

// ServeSSE handles GET /api/session/events?token=<jwt>. It runs behind
// mw.Auth and mw.RequireCharacter.
func (h *Handler) ServeSSE(c *gin.Context) {
	charID := mw.GetCharID(c)
	s := h.sm.Get(charID)
	if s == nil || s.IsClosed() || s.Token() != mw.GetToken(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, fx.ChannelFor(charID), announceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Int64("char_id", charID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"char_id\":%d}\n\n", charID)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			event := "fx"
			if msg.Channel == announceChannel {
				event = "announce"
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-s.Done:
			fmt.Fprintf(c.Writer, "event: closed\ndata: {}\n\n")
			c.Writer.Flush()
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}

// Announce publishes an announcement to every SSE subscriber.
func (h *Handler) Announce(ctx context.Context, message string) error {
	return h.pubsub.Publish(ctx, announceChannel, message)
}

type announceRequest struct {
	Message string `json:"message" binding:"required"`
}

// PostAnnounce handles POST /admin/announce.
func (h *Handler) PostAnnounce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, _ := json.Marshal(gin.H{"message": req.Message})
	if err := h.Announce(c.Request.Context(), string(payload)); err != nil {
		h.logger.Error("announce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
