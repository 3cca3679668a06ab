package model

import (
	"time"

	"gorm.io/datatypes"
)

// Character is the stored form of a player character. Level and Exp are
// copied out of the snapshot so rankings can be queried without decoding it.
type Character struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64          `gorm:"index:idx_account;not null" json:"account_id"`
	Name      string         `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Color     string         `gorm:"size:16" json:"color"`
	Level     int            `gorm:"index:idx_level;default:1" json:"level"`
	Exp       int64          `gorm:"default:0" json:"exp"`
	Snapshot  datatypes.JSON `json:"snapshot"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
