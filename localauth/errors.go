package localauth

import "errors"

var (
	// ErrInvalidFactor indicates an unrecognized factor type.
	ErrInvalidFactor = errors.New("invalid factor type")
	// ErrNotEnabled indicates the requested factor is not enabled.
	ErrNotEnabled = errors.New("factor not enabled")
	// ErrPinRequired indicates biometric enablement was attempted without an
	// enabled PIN factor to act as backup.
	ErrPinRequired = errors.New("pin factor required before biometric")
	// ErrDependentFactor indicates the PIN factor cannot be disabled while
	// the biometric factor still depends on it.
	ErrDependentFactor = errors.New("dependent factor still enabled")
	// ErrMismatch indicates a supplied secret did not match the stored
	// commitment. Retried internally up to the policy bound.
	ErrMismatch = errors.New("secret mismatch")
	// ErrLockout indicates the consecutive-failure bound was reached.
	// Terminal for the current call.
	ErrLockout = errors.New("too many failed attempts")
	// ErrCanceled indicates the challenge was canceled by the presenter.
	// No state is mutated.
	ErrCanceled = errors.New("challenge canceled")
	// ErrFactorChanged indicates platform key material was permanently
	// invalidated (e.g. enrolled biometrics changed) and the factor was
	// force-disabled. The caller should prompt re-enrollment.
	ErrFactorChanged = errors.New("factor key material changed")
	// ErrKeyInvalidated is reported by a DeviceKeySource when the hardware
	// key can no longer be used.
	ErrKeyInvalidated = errors.New("device key permanently invalidated")
	// ErrUnavailable indicates the platform capability backing a factor is
	// absent on this device.
	ErrUnavailable = errors.New("factor unavailable on this device")
)
