// Package guard contains the pure decision logic for login attempt
// throttling. It performs no I/O: Evaluate takes a snapshot of an account's
// security fields and returns both a Decision and the exact mutation the
// caller must persist atomically before surfacing the decision.
package guard

import (
	"fmt"
	"time"
)

// Policy holds the lockout thresholds. The soft threshold fires once, on the
// exact failure that crosses it; the hard threshold uses >= so any further
// failures past it keep re-locking rather than falling back to a plain deny.
type Policy struct {
	SoftThreshold int
	HardThreshold int
	SoftCooldown  time.Duration
	HardCooldown  time.Duration
}

// DefaultPolicy returns the stock policy: 3 consecutive failures earn a
// 1-minute cooldown, 5 cumulative failures earn a 5-minute cooldown.
func DefaultPolicy() Policy {
	return Policy{
		SoftThreshold: 3,
		HardThreshold: 5,
		SoftCooldown:  1 * time.Minute,
		HardCooldown:  5 * time.Minute,
	}
}

// SecurityState is the subset of an account record the guard consults.
// The record itself lives in the external store; this is a value snapshot.
type SecurityState struct {
	FailedAttempts int
	LastFailedAt   *time.Time
	CooldownUntil  *time.Time
}

// Outcome is the result class of an evaluation.
type Outcome string

const (
	OutcomeAllow  Outcome = "allow"
	OutcomeDeny   Outcome = "deny"
	OutcomeLocked Outcome = "locked"
)

// Decision is the pure output of an evaluation. Only the fields relevant to
// the outcome are populated.
type Decision struct {
	Outcome           Outcome
	AttemptsSoFar     int
	AttemptsRemaining int           // deny only: failures left before the hard lock
	CooldownUntil     time.Time     // locked only
	Remaining         time.Duration // locked only: cooldownUntil - now
	Reason            string        // locked only
}

// MutationKind selects which persistence path the store must take.
type MutationKind int

const (
	// MutationNone means no fields changed (attempt during an active cooldown).
	MutationNone MutationKind = iota
	// MutationReset clears all throttling state (successful authentication).
	MutationReset
	// MutationFailure increments the counter and possibly sets a cooldown.
	// Stores must apply the increment atomically (single increment-and-read
	// or compare-and-swap), never as a separate read-modify-write.
	MutationFailure
)

// Mutation is the field-level update the caller persists. FailedAttempts,
// LastFailedAt and CooldownUntil carry the values this evaluation computed
// from its snapshot; a nil pointer on a failure mutation means "leave as is",
// on a reset it means "clear".
type Mutation struct {
	Kind           MutationKind
	FailedAttempts int
	LastFailedAt   *time.Time
	CooldownUntil  *time.Time
}

// Apply writes the mutation into an in-memory state. Real stores translate
// the mutation into an atomic update instead; this is the reference
// semantics, used by tests and the in-memory store.
func (m Mutation) Apply(state *SecurityState) {
	switch m.Kind {
	case MutationNone:
	case MutationReset:
		state.FailedAttempts = 0
		state.LastFailedAt = nil
		state.CooldownUntil = nil
	case MutationFailure:
		state.FailedAttempts = m.FailedAttempts
		state.LastFailedAt = m.LastFailedAt
		if m.CooldownUntil != nil {
			state.CooldownUntil = m.CooldownUntil
		}
	}
}

// Guard evaluates login attempts against a Policy.
type Guard struct {
	policy Policy
}

func New(policy Policy) *Guard {
	return &Guard{policy: policy}
}

// Evaluate decides the outcome of a login attempt.
//
// The lock check runs before the increment, so attempts during an active
// cooldown never advance the counter. An elapsed cooldown is treated as
// absent; it is never eagerly cleared here, and the counter continues from
// where it left off. A correct password resets everything unconditionally.
func (g *Guard) Evaluate(state SecurityState, passwordCorrect bool, now time.Time) (Decision, Mutation) {
	if state.CooldownUntil != nil && now.Before(*state.CooldownUntil) {
		return Decision{
			Outcome:       OutcomeLocked,
			AttemptsSoFar: state.FailedAttempts,
			CooldownUntil: *state.CooldownUntil,
			Remaining:     state.CooldownUntil.Sub(now),
		}, Mutation{Kind: MutationNone}
	}

	if passwordCorrect {
		return Decision{Outcome: OutcomeAllow}, Mutation{Kind: MutationReset}
	}

	attempts := state.FailedAttempts + 1
	failedAt := now

	switch {
	case attempts >= g.policy.HardThreshold:
		until := now.Add(g.policy.HardCooldown)
		return Decision{
				Outcome:       OutcomeLocked,
				AttemptsSoFar: attempts,
				CooldownUntil: until,
				Remaining:     g.policy.HardCooldown,
				Reason:        fmt.Sprintf("%d failed attempts", g.policy.HardThreshold),
			}, Mutation{
				Kind:           MutationFailure,
				FailedAttempts: attempts,
				LastFailedAt:   &failedAt,
				CooldownUntil:  &until,
			}
	case attempts == g.policy.SoftThreshold:
		until := now.Add(g.policy.SoftCooldown)
		return Decision{
				Outcome:       OutcomeLocked,
				AttemptsSoFar: attempts,
				CooldownUntil: until,
				Remaining:     g.policy.SoftCooldown,
				Reason:        fmt.Sprintf("%d failed attempts", g.policy.SoftThreshold),
			}, Mutation{
				Kind:           MutationFailure,
				FailedAttempts: attempts,
				LastFailedAt:   &failedAt,
				CooldownUntil:  &until,
			}
	default:
		return Decision{
				Outcome:           OutcomeDeny,
				AttemptsSoFar:     attempts,
				AttemptsRemaining: g.policy.HardThreshold - attempts,
			}, Mutation{
				Kind:           MutationFailure,
				FailedAttempts: attempts,
				LastFailedAt:   &failedAt,
			}
	}
}
