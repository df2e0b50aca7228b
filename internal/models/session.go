package models

import "time"

// Session is a server-issued bearer credential. The ID is the opaque token
// handed to the client; ExpiresAt is fixed at creation and never extended.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is logically invisible at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
