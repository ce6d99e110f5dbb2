package localauth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/storage"
)

// storeName is the repository namespace for factor state records.
const storeName = "localauth"

// factorState is the persisted record for one (id, factor) pair. The
// secret itself is never stored; Commitment is derived from the wrap key
// and proves knowledge of the secret without revealing it.
type factorState struct {
	Enabled bool                `json:"enabled"`
	Salt    []byte              `json:"salt,omitempty"`
	KDF     util.Argon2idParams `json:"kdf,omitzero"`
	// Commitment is HKDF(wrapKey, "commitment"); comparing it re-proves the
	// secret with a single Argon2id run per attempt.
	Commitment []byte `json:"commitment,omitempty"`
	// WrappedMaster is the vault master key wrapped under this factor's
	// unlock key (PIN-derived for the PIN factor, hardware device key for
	// the biometric factor).
	WrappedMaster json.RawMessage `json:"wrappedMaster,omitempty"`
	// BackupWrapped holds the biometric device key wrapped under the PIN
	// factor's key, so a PIN change can re-wrap without re-enrollment.
	BackupWrapped json.RawMessage `json:"backupWrapped,omitempty"`
	// Failures is the persisted consecutive-failure counter, read-modify-
	// written once per attempt.
	Failures int `json:"failures"`
}

func stateID(id string, factor FactorType) string {
	return fmt.Sprintf("%s/%s", id, factor)
}

func (a *Authenticator) loadState(factor FactorType) (*factorState, error) {
	env, err := a.repo.Get(storeName, stateID(a.id, factor))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return &factorState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s state: %w", factor, err)
	}
	data, err := env.PlainData()
	if err != nil {
		return nil, fmt.Errorf("loading %s state: %w", factor, err)
	}
	var st factorState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding %s state: %w", factor, err)
	}
	return &st, nil
}

// saveState persists the record in one write so a crash never leaves a
// partially updated factor visible to the next call.
func (a *Authenticator) saveState(factor FactorType, st *factorState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding %s state: %w", factor, err)
	}
	// Factor state holds no plaintext secrets, only commitments and wrapped
	// keys, so it is stored as a plain record. Encrypting it under the
	// master key would be circular: this record is what unlocks that key.
	if err := a.repo.Put(storeName, stateID(a.id, factor), storage.PlainRecord(data)); err != nil {
		return fmt.Errorf("persisting %s state: %w", factor, err)
	}
	return nil
}

func (a *Authenticator) deleteState(factor FactorType) error {
	err := a.repo.Delete(storeName, stateID(a.id, factor))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return nil
	}
	return err
}
