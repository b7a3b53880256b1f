package models

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a refresh-token lineage to a user and device. The raw
// refresh token is never stored; only its hash. A session leaves
// the active state by expiry or revocation and never re-enters it.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Usable reports whether the session can still redeem a refresh token
// at the given instant.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
