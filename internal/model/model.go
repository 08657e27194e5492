// Package model defines the database models used by the install service.
// These models work with both PostgreSQL and SQLite via GORM.
package model

import (
	"time"
)

// OAuthState is the single-use state token issued for an in-flight install
// handshake. There is at most one row per shop; a newer handshake replaces
// the older one.
type OAuthState struct {
	Shop      string    `gorm:"primaryKey;type:text" json:"shop"`
	Nonce     string    `gorm:"not null;type:text" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OAuthState) TableName() string { return "oauth_states" }

// Expired reports whether the state is past its expiry at the given time.
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AllModels returns all model types for migration.
func AllModels() []interface{} {
	return []interface{}{
		&OAuthState{},
	}
}
