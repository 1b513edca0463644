package lockout

import "time"

// Policy holds the lockout thresholds. The zero value is not usable; build
// one with NewPolicy or take DefaultPolicy.
type Policy struct {
	// MaxAttempts is the number of consecutive failures that triggers a lock.
	MaxAttempts int
	// Duration is how long an account stays locked once triggered.
	Duration time.Duration
}

// DefaultPolicy locks an account for 15 minutes after 5 consecutive
// failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Duration:    15 * time.Minute,
	}
}

// State is the per-account lockout state persisted alongside the account
// record. The zero value means "no failures, not locked".
type State struct {
	// FailedAttempts counts consecutive failed verifications since the last
	// success.
	FailedAttempts int
	// LockedUntil is the instant the lock expires. The zero time means the
	// account is not locked.
	LockedUntil time.Time
}

// IsLocked reports whether s is locked at instant now. An expired
// LockedUntil reads as unlocked; callers clear the stale state on the next
// transition.
func (s State) IsLocked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// OnFailure returns the state after one more failed verification at instant
// now. Reaching p.MaxAttempts sets LockedUntil to now + p.Duration. A
// failure recorded while already locked re-extends the lock from now; the
// attempt should not have been possible and is treated as hostile.
func (p Policy) OnFailure(s State, now time.Time) State {
	next := State{FailedAttempts: s.FailedAttempts + 1}

	if next.FailedAttempts >= p.MaxAttempts {
		next.LockedUntil = now.Add(p.Duration)
	}

	return next
}

// OnSuccess returns the state after a successful verification: counter
// cleared, lock cleared.
func (p Policy) OnSuccess(s State) State {
	return State{}
}

// Validate reports whether the policy thresholds are sane.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errMaxAttempts
	}
	if p.Duration <= 0 {
		return errDuration
	}
	return nil
}
