package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	Email        string       `gorm:"uniqueIndex;size:255" json:"email"`
	Name         string       `gorm:"size:255" json:"name"`
	PasswordHash string       `gorm:"size:255" json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type Session struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id,string"`
	UserID    snowflake.ID `gorm:"index" json:"user_id,string"`
	Token     string       `gorm:"uniqueIndex;size:64" json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Session) TableName() string {
	return "sessions"
}
