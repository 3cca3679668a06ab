package sse

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/character"
	"github.com/kasuganosora/arenacore/game/fx"
	"github.com/kasuganosora/arenacore/game/player"
	"github.com/kasuganosora/arenacore/game/skill"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSec = config.SecurityConfig{JWTSecret: "sse-secret", JWTTTLH: time.Hour}

type sseEnv struct {
	srv    *httptest.Server
	cache  cache.Cache
	pubsub cache.PubSub
	sm     *player.SessionManager
	h      *Handler
}

func newSSEEnv(t *testing.T) *sseEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, ps := testutil.SetupTestCache(t)
	sm := player.NewSessionManager(nil)
	h := NewHandler(ps, sm, nil)
	h.keepalive = 50 * time.Millisecond

	r := gin.New()
	r.GET("/api/session/events", mw.Auth(testSec, c), mw.RequireCharacter(), h.ServeSSE)
	r.POST("/admin/announce", h.PostAnnounce)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &sseEnv{srv: srv, cache: c, pubsub: ps, sm: sm, h: h}
}

func (e *sseEnv) loadSession(t *testing.T, charID int64) (*player.Session, string) {
	t.Helper()
	tok, err := mw.GenerateToken(1, charID, testSec.JWTSecret, testSec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, e.cache.Set(context.Background(), mw.SessionKey(tok), "1", time.Hour))
	c := character.New("Hero", "#fff", skill.DefaultSkills())
	c.SetID(charID)
	s := player.NewSession(1, c, nil, nil)
	s.SetToken(tok)
	e.sm.Register(s)
	return s, tok
}

// stream opens the event stream and returns a line reader.
func (e *sseEnv) stream(t *testing.T, token string) (*http.Response, *bufio.Reader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/api/session/events?token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

// waitFor reads until a line with prefix arrives and returns it.
func waitFor(t *testing.T, rd *bufio.Reader, prefix string) string {
	t.Helper()
	found := make(chan string, 1)
	go func() {
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, prefix) {
				found <- line
				return
			}
		}
	}()
	select {
	case line := <-found:
		return line
	case <-time.After(2 * time.Second):
		t.Fatalf("no %q line within 2s", prefix)
		return ""
	}
}

func TestServeSSE_RejectsWithoutSession(t *testing.T) {
	e := newSSEEnv(t)
	resp, err := http.Get(e.srv.URL + "/api/session/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s, tok := e.loadSession(t, 4)
	s.SetToken("displaced")
	resp, err = http.Get(e.srv.URL + "/api/session/events?token=" + tok)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeSSE_StreamsFXAndAnnouncements(t *testing.T) {
	e := newSSEEnv(t)
	_, tok := e.loadSession(t, 8)
	resp, rd := e.stream(t, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	waitFor(t, rd, "event: connected")

	bridge := fx.PubSubBridge(e.pubsub)
	require.NoError(t, bridge(context.Background(), fx.Event{Type: fx.LevelUp, CharID: 8, Amount: 2}))
	waitFor(t, rd, "event: fx")
	assert.Contains(t, waitFor(t, rd, "data: "), `"level_up"`)

	w, err := http.Post(e.srv.URL+"/admin/announce", "application/json", bytes.NewReader([]byte(`{"message":"maintenance"}`)))
	require.NoError(t, err)
	w.Body.Close()
	require.Equal(t, http.StatusOK, w.StatusCode)
	waitFor(t, rd, "event: announce")
	assert.Contains(t, waitFor(t, rd, "data: "), "maintenance")

	waitFor(t, rd, ": keepalive")
}

func TestServeSSE_EndsWhenSessionCloses(t *testing.T) {
	e := newSSEEnv(t)
	s, tok := e.loadSession(t, 12)
	_, rd := e.stream(t, tok)
	waitFor(t, rd, "event: connected")
	s.Close()
	waitFor(t, rd, "event: closed")
}
