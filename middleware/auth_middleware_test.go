package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{})
	require.NoError(t, err)
	return c
}

var testSec = config.SecurityConfig{JWTSecret: "secret", JWTTTLH: time.Hour}

func newProtectedRouter(c cache.Cache, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.Use(extra...)
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"account": GetAccountID(ctx), "char": GetCharID(ctx)})
	})
	return r
}

func liveToken(t *testing.T, c cache.Cache, accountID, charID int64) string {
	t.Helper()
	token, err := GenerateToken(accountID, charID, "secret", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(token), "1", time.Hour))
	return token
}

func TestAuth_Rejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := setupTestCache(t)
	r := newProtectedRouter(c)

	notCached, err := GenerateToken(42, 0, "secret", time.Hour)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":    "",
		"no bearer":  "Token abc123",
		"invalid":    "Bearer notavalidtoken",
		"not cached": "Bearer " + notCached,
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestAuth_SetsIDsInContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := setupTestCache(t)
	r := newProtectedRouter(c)
	token := liveToken(t, c, 42, 7)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"account":42,"char":7}`, w.Body.String())
}

func TestAuth_QueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := setupTestCache(t)
	r := newProtectedRouter(c)
	token := liveToken(t, c, 1, 2)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireCharacter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := setupTestCache(t)
	r := newProtectedRouter(c, RequireCharacter())

	for _, tc := range []struct {
		charID int64
		want   int
	}{{0, http.StatusUnauthorized}, {5, http.StatusOK}} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+liveToken(t, c, 1, tc.charID))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "char %d", tc.charID)
	}
}

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(key string) *gin.Engine {
		r := gin.New()
		r.Use(AdminAuth(key))
		r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	do := func(r *gin.Engine, key string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if key != "" {
			req.Header.Set("X-Admin-Key", key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusServiceUnavailable, do(newRouter(""), "x"))
	assert.Equal(t, http.StatusUnauthorized, do(newRouter("k"), "wrong"))
	assert.Equal(t, http.StatusUnauthorized, do(newRouter("k"), ""))
	assert.Equal(t, http.StatusOK, do(newRouter("k"), "k"))
}

func TestGetIDs_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, int64(0), GetAccountID(c))
	assert.Equal(t, int64(0), GetCharID(c))
	assert.Equal(t, "", GetToken(c))
}

func TestRecovery_CatchesPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogger_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		c.Set(CharIDKey, int64(3))
		c.Status(http.StatusOK)
	})
	r.GET("/fail", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	for path, want := range map[string]int{"/ping": http.StatusOK, "/fail": http.StatusInternalServerError} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code)
	}
}
