package domain

import "time"

// SessionClaims is the verified identity attached to a request. It is produced by
// the identity exchange and is read-only everywhere else.
type SessionClaims struct {
	SubjectID string    `json:"sub"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Valid reports whether the claims identify a subject and have not expired at now.
// A nil receiver is never valid.
func (c *SessionClaims) Valid(now time.Time) bool {
	if c == nil || c.SubjectID == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}
