// Package key provides symmetric key management with encryption, decryption,
// key wrapping, rotation, and JSON serialization. Wrapped keys let a master
// key be stored under several unlock factors and re-wrapped when a factor's
// secret changes.
package key

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type represents the key type.
type Type int

const (
	// Symmetric is a randomly generated AES-256 key.
	Symmetric Type = 0
	// Derived is a key deterministically derived from a secret, such as a
	// PIN run through Argon2id. Derived keys are never persisted.
	Derived Type = 1
)

// ErrUnknownType is returned when an unrecognized key type is encountered.
var ErrUnknownType = errors.New("unknown key type")

func (t Type) String() string {
	switch t {
	case Symmetric:
		return "Symmetric"
	case Derived:
		return "Derived"
	default:
		return "Unknown"
	}
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshaling key type: %w", err)
	}

	switch s {
	case "Symmetric":
		*t = Symmetric
	case "Derived":
		*t = Derived
	default:
		return ErrUnknownType
	}

	return nil
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
