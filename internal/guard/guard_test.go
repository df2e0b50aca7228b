package guard_test

import (
	"testing"
	"time"

	"github.com/dhartley/toolshed/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newGuard() *guard.Guard {
	return guard.New(guard.DefaultPolicy())
}

// fail runs one wrong-password evaluation and applies its mutation, the way
// a store would.
func fail(t *testing.T, g *guard.Guard, state *guard.SecurityState, now time.Time) guard.Decision {
	t.Helper()
	decision, mutation := g.Evaluate(*state, false, now)
	mutation.Apply(state)
	return decision
}

func TestGuardEvaluate_ProgressiveLockout(t *testing.T) {
	g := newGuard()
	state := guard.SecurityState{}
	now := baseTime

	// Attempts 1 and 2: denied with a shrinking allowance.
	d := fail(t, g, &state, now)
	assert.Equal(t, guard.OutcomeDeny, d.Outcome)
	assert.Equal(t, 1, d.AttemptsSoFar)
	assert.Equal(t, 4, d.AttemptsRemaining)

	d = fail(t, g, &state, now.Add(time.Second))
	assert.Equal(t, guard.OutcomeDeny, d.Outcome)
	assert.Equal(t, 3, d.AttemptsRemaining)

	// Attempt 3 crosses the soft threshold: 1-minute cooldown.
	d = fail(t, g, &state, now.Add(2*time.Second))
	require.Equal(t, guard.OutcomeLocked, d.Outcome)
	assert.Equal(t, time.Minute, d.Remaining)
	assert.Equal(t, "3 failed attempts", d.Reason)
	require.NotNil(t, state.CooldownUntil)

	// Attempt 4 lands during the cooldown: still locked, no increment.
	d = fail(t, g, &state, now.Add(30*time.Second))
	assert.Equal(t, guard.OutcomeLocked, d.Outcome)
	assert.Equal(t, 3, state.FailedAttempts)

	// Cooldown elapses. The 4th cumulative failure is a plain deny; the
	// counter continues from 3, it does not restart.
	afterCooldown := now.Add(2*time.Second + 61*time.Second)
	d = fail(t, g, &state, afterCooldown)
	assert.Equal(t, guard.OutcomeDeny, d.Outcome)
	assert.Equal(t, 4, d.AttemptsSoFar)
	assert.Equal(t, 1, d.AttemptsRemaining)

	// The 5th cumulative failure earns the 5-minute lock.
	d = fail(t, g, &state, afterCooldown.Add(time.Second))
	require.Equal(t, guard.OutcomeLocked, d.Outcome)
	assert.Equal(t, 5*time.Minute, d.Remaining)
	assert.Equal(t, "5 failed attempts", d.Reason)
}

func TestGuardEvaluate_FailuresPastHardThresholdKeepLocking(t *testing.T) {
	g := newGuard()
	state := guard.SecurityState{FailedAttempts: 5}
	now := baseTime

	// Counter already past the hard threshold with no active cooldown
	// (e.g. the previous hard cooldown elapsed): every further failure
	// re-locks, it never degrades back to a deny.
	d := fail(t, g, &state, now)
	require.Equal(t, guard.OutcomeLocked, d.Outcome)
	assert.Equal(t, 6, d.AttemptsSoFar)
	assert.Equal(t, 5*time.Minute, d.Remaining)
}

func TestGuardEvaluate_SuccessResetsUnconditionally(t *testing.T) {
	g := newGuard()
	now := baseTime

	for attempts := 0; attempts <= 4; attempts++ {
		lastFailed := now.Add(-time.Minute)
		state := guard.SecurityState{
			FailedAttempts: attempts,
			LastFailedAt:   &lastFailed,
		}

		decision, mutation := g.Evaluate(state, true, now)

		assert.Equal(t, guard.OutcomeAllow, decision.Outcome)
		assert.Equal(t, guard.MutationReset, mutation.Kind)

		mutation.Apply(&state)
		assert.Zero(t, state.FailedAttempts)
		assert.Nil(t, state.LastFailedAt)
		assert.Nil(t, state.CooldownUntil)
	}
}

func TestGuardEvaluate_SuccessAfterElapsedCooldownResets(t *testing.T) {
	g := newGuard()
	cooldownUntil := baseTime.Add(-time.Second)
	state := guard.SecurityState{
		FailedAttempts: 3,
		CooldownUntil:  &cooldownUntil,
	}

	decision, mutation := g.Evaluate(state, true, baseTime)

	assert.Equal(t, guard.OutcomeAllow, decision.Outcome)
	mutation.Apply(&state)
	assert.Zero(t, state.FailedAttempts)
	assert.Nil(t, state.CooldownUntil)
}

func TestGuardEvaluate_CorrectPasswordDuringCooldownStaysLocked(t *testing.T) {
	g := newGuard()
	cooldownUntil := baseTime.Add(time.Minute)
	state := guard.SecurityState{
		FailedAttempts: 3,
		CooldownUntil:  &cooldownUntil,
	}

	decision, mutation := g.Evaluate(state, true, baseTime)

	assert.Equal(t, guard.OutcomeLocked, decision.Outcome)
	assert.Equal(t, guard.MutationNone, mutation.Kind)
	assert.Equal(t, 3, state.FailedAttempts)
}

func TestGuardEvaluate_CooldownIdempotence(t *testing.T) {
	g := newGuard()
	cooldownUntil := baseTime.Add(time.Minute)
	state := guard.SecurityState{
		FailedAttempts: 3,
		CooldownUntil:  &cooldownUntil,
	}

	// Repeated failures during the cooldown never mutate the counter, and
	// the reported remaining time strictly decreases as the clock advances.
	prevRemaining := 2 * time.Minute
	for _, offset := range []time.Duration{0, 10 * time.Second, 30 * time.Second, 59 * time.Second} {
		decision, mutation := g.Evaluate(state, false, baseTime.Add(offset))

		require.Equal(t, guard.OutcomeLocked, decision.Outcome)
		assert.Equal(t, guard.MutationNone, mutation.Kind)
		assert.Equal(t, cooldownUntil, decision.CooldownUntil)
		assert.Less(t, decision.Remaining, prevRemaining)
		assert.Equal(t, 3, state.FailedAttempts)

		prevRemaining = decision.Remaining
	}
}

func TestGuardEvaluate_NewCooldownOverwritesPrevious(t *testing.T) {
	g := newGuard()
	state := guard.SecurityState{}
	now := baseTime

	for i := 0; i < 3; i++ {
		fail(t, g, &state, now.Add(time.Duration(i)*time.Second))
	}
	softUntil := *state.CooldownUntil

	// Two more failures after the soft cooldown elapses.
	later := softUntil.Add(time.Second)
	fail(t, g, &state, later)
	d := fail(t, g, &state, later.Add(time.Second))

	require.Equal(t, guard.OutcomeLocked, d.Outcome)
	require.NotNil(t, state.CooldownUntil)
	assert.True(t, state.CooldownUntil.After(softUntil), "hard cooldown must overwrite the elapsed soft one")
}

func TestGuardEvaluate_LockedScenarioThenRecovery(t *testing.T) {
	// Scenario: three wrong passwords lock the account for ~60s; after the
	// cooldown elapses a correct password is allowed and resets the state.
	g := newGuard()
	state := guard.SecurityState{}
	now := baseTime

	var d guard.Decision
	for i := 0; i < 3; i++ {
		d = fail(t, g, &state, now)
	}
	require.Equal(t, guard.OutcomeLocked, d.Outcome)
	assert.Equal(t, time.Minute, d.Remaining)

	now = now.Add(61 * time.Second)
	decision, mutation := g.Evaluate(state, true, now)
	assert.Equal(t, guard.OutcomeAllow, decision.Outcome)

	mutation.Apply(&state)
	assert.Zero(t, state.FailedAttempts)
	assert.Nil(t, state.CooldownUntil)
}
