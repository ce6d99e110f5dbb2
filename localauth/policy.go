package localauth

import "time"

// Policy configures retry and re-authentication behavior. The counter
// reset rules are explicit knobs rather than hard-coded because observed
// platform behavior differs on the edges (e.g. a process killed mid-loop).
type Policy struct {
	// MaxAttempts is the consecutive-failure bound before lockout.
	MaxAttempts int
	// ResetOnLockout resets the persisted failure counter to zero when a
	// lockout is raised.
	ResetOnLockout bool
	// ResetOnSuccess resets the persisted failure counter to zero on a
	// successful match.
	ResetOnSuccess bool
	// ReauthAfter bounds how long an instance stays authenticated after a
	// successful login. Zero means authenticated for the instance lifetime.
	ReauthAfter time.Duration
}

// DefaultPolicy returns the stock policy: 3 attempts, counters reset on
// both lockout and success, authenticated for the instance lifetime.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		ResetOnLockout: true,
		ResetOnSuccess: true,
	}
}
