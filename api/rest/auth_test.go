package rest_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/api/rest"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/model"
	"github.com/kasuganosora/arenacore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *rest.AuthHandler) {
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	h := rest.NewAuthHandler(db, c, testSec, nil)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", mw.Auth(testSec, c), h.Logout)
	r.POST("/api/auth/refresh", mw.Auth(testSec, c), h.Refresh)
	return r, h
}

func TestLoginAutoRegister(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "pass1234",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	assert.NotZero(t, resp["account_id"])
}

func TestLoginWrongPassword(t *testing.T) {
	r, _ := newAuthRouter(t)

	// Register first
	postJSON(r, "/api/auth/login", map[string]string{"username": "bob", "password": "correct"})

	// Wrong password
	w := postJSON(r, "/api/auth/login", map[string]string{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginSecondTime(t *testing.T) {
	r, _ := newAuthRouter(t)

	w1 := postJSON(r, "/api/auth/login", map[string]string{"username": "carol", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w1.Code)

	// Same credentials → should succeed again
	w2 := postJSON(r, "/api/auth/login", map[string]string{"username": "carol", "password": "pass1234"})
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestLogout(t *testing.T) {
	r, _ := newAuthRouter(t)

	// Login
	w := postJSON(r, "/api/auth/login", map[string]string{"username": "dave", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp["token"].(string)

	// Logout
	w2 := postJSON(r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w2.Code)

	// Second attempt with same token should fail (session removed)
	w3 := postJSON(r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestRefresh(t *testing.T) {
	r, _ := newAuthRouter(t)

	// Login first
	w := postJSON(r, "/api/auth/login", map[string]string{"username": "refreshuser", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp["token"].(string)

	// Refresh should succeed and return a token
	w2 := postJSON(r, "/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp2 map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	newToken := resp2["token"].(string)
	assert.NotEmpty(t, newToken)
}

func TestRefresh_NoToken(t *testing.T) {
	r, _ := newAuthRouter(t)
	// Without a valid Bearer token the Auth middleware rejects with 401
	w := postJSON(r, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginBannedAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	h := rest.NewAuthHandler(db, c, testSec, nil)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)

	// Auto-register "bannedacc"
	w := postJSON(r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)

	// Ban the account by setting Status=0
	db.Model(&model.Account{}).Where("username = ?", "bannedacc").Update("status", model.AccountBanned)

	// Login should now return 403 Forbidden
	w2 := postJSON(r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w2.Code)
}

func TestLoginValidation(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := postJSON(r, "/api/auth/login", map[string]string{"username": "x", "password": "pass1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "username too short")
	w = postJSON(r, "/api/auth/login", map[string]string{"username": "xavier"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "password missing")
}

func TestRefresh_KeepsCharacterBinding(t *testing.T) {
	e := newEnv(t)
	acct := e.login(t, "binder")
	charID := e.createCharacter(t, acct, "Binder")
	sess := e.openSession(t, acct, charID)

	w := postJSON(e.r, "/api/auth/refresh", nil, "Authorization", "Bearer "+sess)
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode(t, w)["token"].(string)

	claims, err := mw.ParseToken(fresh, testSec.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, charID, claims.CharID)

	// the old token is revoked and the session follows the new one
	w = postJSON(e.r, "/api/auth/refresh", nil, "Authorization", "Bearer "+sess)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doJSON(e.r, http.MethodGet, "/api/session", nil, fresh)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRecordsLastLogin(t *testing.T) {
	e := newEnv(t)
	e.login(t, "stamp")
	var acc model.Account
	require.NoError(t, e.db.Where("username = ?", "stamp").First(&acc).Error)
	assert.NotNil(t, acc.LastLoginAt)
}
