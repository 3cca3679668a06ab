package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/api/rest"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/item"
	"github.com/kasuganosora/arenacore/game/player"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/game/world"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSec = config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}

type env struct {
	r     *gin.Engine
	db    *gorm.DB
	cache cache.Cache
	svc   *player.Service
}

// newEnv wires the player routes the way main does.
func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	arena := &player.Arena{
		Enemies:  world.NewRegistry(),
		Items:    item.DefaultCatalog(),
		Resolver: combat.NewResolver(nil),
		Roll:     func() float64 { return 0 },
	}
	store := player.NewStore(db, c, skill.DefaultSkills(), nil)
	svc := player.NewService(store, player.NewSessionManager(nil), arena, c, nil)

	authH := rest.NewAuthHandler(db, c, testSec, svc.Sessions)
	charH := rest.NewCharacterHandler(db, svc, nil)
	sessH := rest.NewSessionHandler(svc, c, testSec, nil, nil)
	rankH := rest.NewRankingHandler(store, nil)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/logout", mw.Auth(testSec, c), authH.Logout)
	api.POST("/auth/refresh", mw.Auth(testSec, c), authH.Refresh)
	api.GET("/ranking/level", rankH.TopLevel)
	api.GET("/ranking/level/:char_id", rankH.Character)

	chars := api.Group("/characters", mw.Auth(testSec, c))
	chars.GET("", charH.List)
	chars.POST("", charH.Create)
	chars.GET("/:id", charH.Get)
	chars.DELETE("/:id", charH.Delete)

	api.POST("/sessions", mw.Auth(testSec, c), sessH.Open)
	sess := api.Group("/session", mw.Auth(testSec, c), mw.RequireCharacter())
	sess.GET("", sessH.HUD)
	sess.DELETE("", sessH.Close)
	sess.PUT("/pose", sessH.SetPose)
	sess.POST("/save", sessH.Save)
	sess.POST("/skills/:id/activate", sessH.Activate)
	sess.GET("/skills/:id/cooldown", sessH.Cooldown)
	sess.POST("/skills/:id/upgrade", sessH.Upgrade)
	sess.PUT("/hotbar/:slot", sessH.AssignSlot)
	sess.DELETE("/hotbar/:slot", sessH.ClearSlot)
	sess.POST("/hotbar/:slot/activate", sessH.ActivateSlot)
	sess.POST("/inventory/:index/use", sessH.UseItem)
	sess.DELETE("/inventory/:index", sessH.DropItem)
	sess.POST("/equipment/:slot", sessH.Equip)
	sess.DELETE("/equipment/:slot", sessH.Unequip)

	return &env{r: r, db: db, cache: c, svc: svc}
}

func doJSON(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// login returns an account token for username (registering it).
func (e *env) login(t *testing.T, username string) string {
	t.Helper()
	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": username, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

// createCharacter creates a character and returns its id.
func (e *env) createCharacter(t *testing.T, token, name string) int64 {
	t.Helper()
	w := doJSON(e.r, http.MethodPost, "/api/characters", map[string]string{"name": name, "color": "#00ff00"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["id"].(float64))
}

// openSession loads charID and returns the session token.
func (e *env) openSession(t *testing.T, token string, charID int64) string {
	t.Helper()
	w := doJSON(e.r, http.MethodPost, "/api/sessions", map[string]int64{"character_id": charID}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}
