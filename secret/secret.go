// Package secret provides zero-on-drop buffers for PINs, passwords, and
// other sensitive byte strings. Material is held in a memguard Enclave
// (encrypted at rest in memory) and only decrypted for the duration of a
// single Use call.
package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/gatekey/internal/util"
)

// ErrDestroyed is returned when a destroyed secret is used.
var ErrDestroyed = errors.New("secret destroyed")

// Secret is an owned sensitive byte string. Call Destroy when done.
// A Secret must not be reused after Destroy.
type Secret struct {
	enclave   *memguard.Enclave
	destroyed bool
}

// New seals b into a new Secret. memguard wipes b as part of sealing,
// so the caller's copy is gone after New returns.
func New(b []byte) *Secret {
	return &Secret{enclave: memguard.NewEnclave(b)}
}

// FromString NFKD-normalizes s and seals it. Normalization keeps a PIN
// typed on different keyboards comparable byte-for-byte.
func FromString(s string) *Secret {
	return New([]byte(util.Normalize(s)))
}

// Use opens the secret, passes the plaintext to fn, and wipes the locked
// buffer when fn returns. The slice passed to fn must not escape.
func (s *Secret) Use(fn func(b []byte) error) error {
	if s == nil || s.destroyed || s.enclave == nil {
		return ErrDestroyed
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening secret enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Bytes returns a plaintext copy of the secret. The caller owns the copy
// and must wipe it with util.WipeBytes. Prefer Use where possible.
func (s *Secret) Bytes() ([]byte, error) {
	var out []byte
	err := s.Use(func(b []byte) error {
		out = util.CopyBytes(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Equal compares two secrets in constant time.
func (s *Secret) Equal(other *Secret) (bool, error) {
	var match bool
	err := s.Use(func(a []byte) error {
		return other.Use(func(b []byte) error {
			match = subtle.ConstantTimeCompare(a, b) == 1
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return match, nil
}

// Destroy drops the enclave. The plaintext is unrecoverable afterwards.
func (s *Secret) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}
