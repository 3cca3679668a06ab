package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/player"
	mw "github.com/kasuganosora/arenacore/middleware"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	cache    cache.Cache
	pubsub   cache.PubSub
	sec      config.SecurityConfig
	sm       *player.SessionManager
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	c cache.Cache,
	pubsub cache.PubSub,
	sec config.SecurityConfig,
	sm *player.SessionManager,
	router *Router,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		cache:  c,
		pubsub: pubsub,
		sec:    sec,
		sm:     sm,
		router: router,
		logger: logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>. The token must be a session token
// whose character is loaded.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr := mw.BearerToken(c)
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.cache.Exists(ctx, mw.SessionKey(tokenStr))
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	s := h.sm.Get(claims.CharID)
	if claims.CharID == 0 || s == nil || s.IsClosed() || s.Token() != tokenStr {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(maxMessage)

	conn := newConn(s, ws, h.logger)
	go conn.writePump()
	h.startFXPush(conn)

	h.logger.Info("ws connected", zap.Int64("char_id", s.CharID), zap.Int64("account_id", s.AccountID))
	h.readPump(conn)
}

// startFXPush forwards the character's fx channel to the connection until
// it closes.
func (h *Handler) startFXPush(conn *Conn) {
	if h.pubsub == nil {
		return
	}
	subCtx, subCancel := context.WithCancel(context.Background())
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, fx.ChannelFor(conn.Session.CharID))
	if err != nil {
		subCancel()
		h.logger.Error("fx subscribe failed", zap.Int64("char_id", conn.Session.CharID), zap.Error(err))
		return
	}
	go func() {
		defer subCancel()
		defer unsub()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				conn.Send(Packet{Type: "fx", Payload: json.RawMessage(msg.Payload)})
			case <-conn.done:
				return
			case <-conn.Session.Done:
				return
			}
		}
	}()
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(conn *Conn) {
	defer func() {
		conn.Close()
		h.logger.Info("ws disconnected", zap.Int64("char_id", conn.Session.CharID))
	}()

	conn.setReadDeadline()
	conn.ws.SetPongHandler(func(string) error {
		conn.setReadDeadline()
		return nil
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("char_id", conn.Session.CharID),
					zap.Error(err))
			}
			return
		}
		if conn.Session.IsClosed() {
			return
		}
		conn.setReadDeadline()
		h.router.Dispatch(conn, raw)
	}
}
