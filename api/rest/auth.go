package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/arenacore/cache"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/game/player"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/kasuganosora/arenacore/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db       *gorm.DB
	cache    cache.Cache
	sec      config.SecurityConfig
	sessions *player.SessionManager
}

// NewAuthHandler creates a new AuthHandler. sessions may be nil when no
// character sessions are served.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, sessions *player.SessionManager) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, sessions: sessions}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login.
// Auto-registers on first login if the username does not exist.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		acc = model.Account{
			Username:     req.Username,
			PasswordHash: string(hash),
			Status:       model.AccountActive,
		}
		if createErr := h.db.Create(&acc).Error; createErr != nil {
			// Another request registered the same name first.
			if isUniqueViolation(createErr) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	} else {
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if acc.Banned() {
			c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	token, err := issueToken(ctx, h.cache, h.sec, acc.ID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Best-effort.
	now := time.Now()
	_ = h.db.Model(&acc).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. The new token keeps the
// character binding of the old one.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	oldToken := mw.GetToken(c)
	charID := mw.GetCharID(c)
	_ = h.cache.Del(ctx, mw.SessionKey(oldToken))

	newToken, err := issueToken(ctx, h.cache, h.sec, accountID, charID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	if charID != 0 && h.sessions != nil {
		if s := h.sessions.Get(charID); s != nil {
			s.ReplaceToken(oldToken, newToken)
		}
	}
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

// issueToken signs a token and marks it live in the session cache.
func issueToken(ctx context.Context, c cache.Cache, sec config.SecurityConfig, accountID, charID int64) (string, error) {
	token, err := mw.GenerateToken(accountID, charID, sec.JWTSecret, sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	if err := c.Set(ctx, mw.SessionKey(token), strconv.FormatInt(accountID, 10), sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
