package localauth

import (
	"errors"
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/storage"
)

// DeviceKeySource is the platform keystore hook backing the biometric
// factor. Implementations wrap hardware-backed key stores; Key must return
// ErrKeyInvalidated when the enrolled biometrics changed and the key can no
// longer be used, and ErrUnavailable when the device has no biometric
// capability.
type DeviceKeySource interface {
	// Generate creates and stores a new device key for id, replacing any
	// existing one, and returns the raw key material.
	Generate(id string) ([]byte, error)
	// Key returns the device key for id after a successful biometric prompt.
	Key(id string) ([]byte, error)
	// Delete removes the device key for id. Deleting a missing key is not
	// an error.
	Delete(id string) error
}

// SoftwareKeySource is a DeviceKeySource backed by the repository instead
// of hardware. It provides no hardware binding and exists for platforms
// without a native keystore and for tests.
type SoftwareKeySource struct {
	repo storage.Repository
}

var _ DeviceKeySource = (*SoftwareKeySource)(nil)

// NewSoftwareKeySource creates a software device-key source.
func NewSoftwareKeySource(repo storage.Repository) *SoftwareKeySource {
	return &SoftwareKeySource{repo: repo}
}

func deviceKeyID(id string) string {
	return "devicekey/" + id
}

func (s *SoftwareKeySource) Generate(id string) ([]byte, error) {
	raw, err := util.NewAESKey()
	if err != nil {
		return nil, fmt.Errorf("generating device key: %w", err)
	}
	if err := s.repo.Put(storeName, deviceKeyID(id), storage.PlainRecord(raw)); err != nil {
		return nil, fmt.Errorf("storing device key: %w", err)
	}
	return raw, nil
}

func (s *SoftwareKeySource) Key(id string) ([]byte, error) {
	env, err := s.repo.Get(storeName, deviceKeyID(id))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return nil, ErrKeyInvalidated
	}
	if err != nil {
		return nil, fmt.Errorf("loading device key: %w", err)
	}
	return env.PlainData()
}

func (s *SoftwareKeySource) Delete(id string) error {
	err := s.repo.Delete(storeName, deviceKeyID(id))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return nil
	}
	return err
}
