package vault

import (
	"github.com/jmcleod/gatekey/keystore"
	"github.com/jmcleod/gatekey/storage"
)

// ErrNotAuthenticated is returned by every encrypted operation while the
// gating keystore is locked. Operations fail loudly instead of returning
// empty results.
var ErrNotAuthenticated = keystore.ErrNotAuthenticated

// ErrNotFound is returned when no entry exists for the requested key and kind.
var ErrNotFound = storage.ErrNotFound
