package model

import "time"

// Account statuses.
const (
	AccountBanned = 0
	AccountActive = 1
)

// Account owns up to three arena characters.
type Account struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Status       int        `gorm:"default:1" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}

// Banned reports whether logins are refused.
func (a *Account) Banned() bool { return a.Status == AccountBanned }
