package users

import (
	"strings"
	"time"
)

// Identity records a user who has signed in at least once.
type Identity struct {
	UserID      string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email       string    `gorm:"column:user_email;size:320;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	AvatarURL   string    `gorm:"column:user_avatar_url;size:512"`
	Role        string    `gorm:"column:user_role;size:32;not null;default:'user'"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Profile is the caller-supplied sign-in data.
type Profile struct {
	Email       string
	DisplayName string
	AvatarURL   string
	Role        string
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
