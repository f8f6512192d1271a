// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"time"

	"github.com/samber/oops"
)

// Default lockout configuration.
const (
	// DefaultLockoutThreshold is the failure count that triggers the first lock.
	DefaultLockoutThreshold = 5

	// DefaultLockoutCadence is the number of further failures that re-triggers a lock.
	DefaultLockoutCadence = 3

	// DefaultLockoutDuration is how long each lock lasts.
	DefaultLockoutDuration = 3 * time.Minute
)

// LockoutPolicy decides when consecutive failed logins lock a credential.
// A lock is triggered when attempts >= Threshold and
// (attempts - Threshold) is a multiple of Cadence.
type LockoutPolicy struct {
	Threshold int
	Cadence   int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the policy used when none is configured.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Cadence:   DefaultLockoutCadence,
		Duration:  DefaultLockoutDuration,
	}
}

// Validate checks that the policy can be applied.
func (p LockoutPolicy) Validate() error {
	if p.Threshold < 1 {
		return oops.Code("LOCKOUT_INVALID_POLICY").With("threshold", p.Threshold).
			Errorf("lockout threshold must be at least 1")
	}
	if p.Cadence < 1 {
		return oops.Code("LOCKOUT_INVALID_POLICY").With("cadence", p.Cadence).
			Errorf("lockout cadence must be at least 1")
	}
	if p.Duration <= 0 {
		return oops.Code("LOCKOUT_INVALID_POLICY").With("duration", p.Duration.String()).
			Errorf("lockout duration must be positive")
	}
	return nil
}

// Triggers returns true if reaching the given failure count locks the credential.
func (p LockoutPolicy) Triggers(attempts int) bool {
	return attempts >= p.Threshold && (attempts-p.Threshold)%p.Cadence == 0
}

// Next returns the locked_until value to persist after a failure brought the
// counter to attempts. When no lock is triggered the current value is kept.
func (p LockoutPolicy) Next(attempts int, current *time.Time, now time.Time) (lockedUntil *time.Time, triggered bool) {
	if !p.Triggers(attempts) {
		return current, false
	}
	until := now.Add(p.Duration)
	return &until, true
}
