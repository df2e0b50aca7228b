package models

import (
	"time"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	Role         string // "admin", "staff", "supplier", "user"

	// Login throttling state. FailedAttempts and CooldownUntil are only
	// mutated through atomic per-row updates in the account repository.
	FailedAttempts int
	LastFailedAt   *time.Time // informational, not consulted by the lockout policy
	CooldownUntil  *time.Time // login denied while now < CooldownUntil

	CreatedAt time.Time
	UpdatedAt time.Time
}
