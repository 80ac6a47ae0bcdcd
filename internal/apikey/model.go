package apikey

import "time"

// UserAPIKey holds one encrypted credential per (user, provider).
type UserAPIKey struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID       uint64    `gorm:"not null;uniqueIndex:uniq_user_provider,priority:1" json:"-"`
	Provider     string    `gorm:"type:varchar(32);not null;uniqueIndex:uniq_user_provider,priority:2" json:"provider"`
	EncryptedKey string    `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UserAPIKey) TableName() string { return "user_api_keys" }
