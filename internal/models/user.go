package models

import "time"

// User mirrors the profile record the web client reads; JSON names are part
// of the client contract and must not change.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`

	Name              string  `gorm:"type:varchar(100)" json:"name"`
	Username          string  `gorm:"type:varchar(100)" json:"userName"`
	Image             *string `gorm:"type:varchar(512)" json:"image"`
	PestImage         *string `gorm:"type:varchar(512)" json:"pestImage"`
	District          string  `gorm:"type:varchar(100)" json:"userDistrict"`
	ChatbotPreference string  `gorm:"type:varchar(32)" json:"chatbotPreference"`
	PageShown         bool    `json:"pageShown"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
