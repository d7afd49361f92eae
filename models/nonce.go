package models

import "time"

// AuthNonce is a pending sign-in challenge for one address.
// At most one is pending per address; issuing a new one replaces it.
type AuthNonce struct {
	Address   string    `json:"address" gorm:"primaryKey;type:varchar(128)"`
	Nonce     string    `json:"nonce" gorm:"type:uuid;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (AuthNonce) TableName() string { return "auth_nonces" }
