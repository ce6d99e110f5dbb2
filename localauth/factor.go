// Package localauth implements the on-device authentication factors that
// gate access to encrypted credential storage: a PIN factor owning the base
// secret and a biometric factor that delegates to the PIN as its backup
// unwrap authenticator.
//
// Per (id, factor) the lifecycle is Disabled, Enabled-Unauthenticated,
// Enabled-Authenticated. Disabled is both the initial state and a reachable
// terminal state.
package localauth

import "fmt"

// FactorType identifies a local authentication factor.
type FactorType string

const (
	FactorPIN       FactorType = "pin"
	FactorBiometric FactorType = "biometric"
)

// ParseFactorType validates a factor name from CLI or API input.
func ParseFactorType(s string) (FactorType, error) {
	switch FactorType(s) {
	case FactorPIN:
		return FactorPIN, nil
	case FactorBiometric:
		return FactorBiometric, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFactor, s)
	}
}

// State is the lifecycle state of one (id, factor) pair.
type State int

const (
	Disabled State = iota
	EnabledUnauthenticated
	EnabledAuthenticated
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case EnabledUnauthenticated:
		return "enabled"
	case EnabledAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
