package users

import (
	"strings"
	"time"
)

// Role is a user's authorization level.
type Role string

const (
	RoleGeneral    Role = "general"
	RoleSuperAdmin Role = "super_admin"
)

// User is a registered account.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Username     string    `gorm:"column:username;size:50;not null;uniqueIndex" json:"username"`
	Role         Role      `gorm:"column:role;size:32;not null;default:general" json:"role"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// Device records one issued session token. Deleting the row revokes the token.
type Device struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:64;not null;index"`
	TokenID   string    `gorm:"column:token_id;size:64;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing issued sessions.
func (Device) TableName() string {
	return "user_devices"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
