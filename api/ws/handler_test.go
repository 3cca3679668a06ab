package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/character"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/player"
	"github.com/kasuganosora/arenacore/game/skill"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSec = config.SecurityConfig{JWTSecret: "ws-secret", JWTTTLH: time.Hour}

type wsEnv struct {
	srv   *httptest.Server
	cache cache.Cache
	sm    *player.SessionManager
	arena *player.Arena
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, ps := testutil.SetupTestCache(t)
	center := fx.NewCenter(nop())
	center.Register(fx.Any, 0, "pubsub", fx.PubSubBridge(ps))
	arena := newArena()
	arena.FX = center
	arena.Resolver = combat.NewResolver(center)

	sm := player.NewSessionManager(nop())
	router := newInputRouter()
	h := NewHandler(c, ps, testSec, sm, router, nop())

	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsEnv{srv: srv, cache: c, sm: sm, arena: arena}
}

// loadSession registers a session for charID and returns its live token.
func (e *wsEnv) loadSession(t *testing.T, charID int64) (*player.Session, string) {
	t.Helper()
	tok, err := mw.GenerateToken(1, charID, testSec.JWTSecret, testSec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, e.cache.Set(context.Background(), mw.SessionKey(tok), "1", time.Hour))
	c := character.New("Hero", "#fff", skill.DefaultSkills())
	c.SetID(charID)
	s := player.NewSession(1, c, e.arena, nil)
	s.SetToken(tok)
	e.sm.Register(s)
	return s, tok
}

func (e *wsEnv) dial(token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readUntil(t *testing.T, ws *websocket.Conn, want ...string) map[string]Packet {
	t.Helper()
	got := make(map[string]Packet)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		missing := false
		for _, w := range want {
			if _, ok := got[w]; !ok {
				missing = true
			}
		}
		if !missing {
			return got
		}
		require.NoError(t, ws.SetReadDeadline(deadline))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var pkt Packet
		require.NoError(t, json.Unmarshal(data, &pkt))
		key := pkt.Type
		if pkt.Type == "fx" {
			var ev fx.Event
			require.NoError(t, json.Unmarshal(pkt.Payload, &ev))
			key = "fx:" + ev.Type
		}
		if _, seen := got[key]; !seen {
			got[key] = pkt
		}
	}
	t.Fatalf("timed out waiting for %v, got %v", want, got)
	return nil
}

func TestServeWS_Rejects(t *testing.T) {
	e := newWSEnv(t)

	_, resp, err := e.dial("")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = e.dial("garbage")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// account token: no character
	acct, _ := mw.GenerateToken(1, 0, testSec.JWTSecret, time.Hour)
	require.NoError(t, e.cache.Set(context.Background(), mw.SessionKey(acct), "1", time.Hour))
	_, resp, err = e.dial(acct)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// live token but a newer token owns the session
	s, tok := e.loadSession(t, 5)
	s.SetToken("other")
	_, resp, err = e.dial(tok)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_ActivateAndFXPush(t *testing.T) {
	e := newWSEnv(t)
	_, tok := e.loadSession(t, 9)

	ws, _, err := e.dial(tok)
	require.NoError(t, err)
	defer ws.Close()

	msg, _ := json.Marshal(map[string]interface{}{
		"seq":     1,
		"type":    "activate_skill",
		"payload": map[string]string{"skill_id": "swordSlash"},
	})
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, msg))

	got := readUntil(t, ws, "activate_skill_result", "fx:"+fx.SwordSlash)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(got["activate_skill_result"].Payload, &res))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, uint64(1), got["activate_skill_result"].Seq)
}

func TestServeWS_ClosesWithSession(t *testing.T) {
	e := newWSEnv(t)
	s, tok := e.loadSession(t, 11)

	ws, _, err := e.dial(tok)
	require.NoError(t, err)
	defer ws.Close()

	s.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = ws.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
}
