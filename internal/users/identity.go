package users

import (
	"strings"
	"time"
)

// Account captures an email/password login together with its public profile.
type Account struct {
	UserID              string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email               string    `gorm:"column:user_email;size:320;not null;uniqueIndex:idx_user_accounts_email"`
	PasswordHash        string    `gorm:"column:password_hash;size:100;not null"`
	DisplayName         string    `gorm:"column:user_display_name;size:320"`
	PhotoURL            string    `gorm:"column:user_photo_url;size:512"`
	ResetTokenHash      string    `gorm:"column:reset_token_hash;size:64;index"`
	ResetExpiresSeconds int64     `gorm:"column:reset_expires_at_s;not null;default:0"`
	LastLoginAt         time.Time `gorm:"column:last_login_at"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user accounts.
func (Account) TableName() string {
	return "user_accounts"
}

// Session projects the account onto the session shape handed to controllers.
func (a Account) Session() Session {
	return Session{
		UserID:      a.UserID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		PhotoURL:    a.PhotoURL,
	}
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(normalize(value))
}
