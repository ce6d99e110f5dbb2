// Package keystore defines the capability that gates vault encryption keys
// behind a local authentication factor. A Keystore is bound 1:1 to a local
// authenticator; it yields key material only while that authenticator
// reports authenticated.
package keystore

import (
	"errors"

	"github.com/jmcleod/gatekey/key"
)

// ErrNotAuthenticated is returned when key material is requested before the
// bound authenticator has authenticated.
var ErrNotAuthenticated = errors.New("keystore not authenticated")

// Keystore yields the master key for encrypted storage, gated on the
// authenticated state of its bound local authenticator.
type Keystore interface {
	// IsAuthenticated reports whether the bound authenticator has
	// successfully authenticated in this process.
	IsAuthenticated() bool
	// MasterKey returns a copy of the master key. The caller must Wipe the
	// copy when done. Returns ErrNotAuthenticated while locked.
	MasterKey() (key.Key, error)
}

// Static is a Keystore that always reports authenticated. It backs
// installs that have no local factor enabled, where the vault is encrypted
// under an application-held key instead of a PIN-unlocked one.
type Static struct {
	master key.Key
}

var _ Keystore = (*Static)(nil)

// NewStatic wraps an application-held master key in a Keystore.
func NewStatic(master key.Key) *Static {
	return &Static{master: master}
}

func (s *Static) IsAuthenticated() bool {
	return s.master != nil
}

func (s *Static) MasterKey() (key.Key, error) {
	if s.master == nil {
		return nil, ErrNotAuthenticated
	}
	return s.master.Copy(), nil
}
