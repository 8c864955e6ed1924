package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. The chat core only reads it to reserve
// account names against anonymous sessions.
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"uniqueIndex;not null"`
	Role      string         `json:"role" gorm:"not null;default:'normal'"`
	Blocked   bool           `json:"blocked" gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
