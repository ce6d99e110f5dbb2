package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmcleod/gatekey/internal/util"
)

// Credential is a stored username/password record. Password is a mutable
// buffer the caller owns; call Wipe as soon as it is no longer needed.
type Credential struct {
	Username   string            `json:"username"`
	Password   []byte            `json:"password,omitempty"`
	TenantID   string            `json:"identityDomain,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Wipe zeroes the password buffer in place.
func (c *Credential) Wipe() {
	util.WipeBytes(c.Password)
	c.Password = nil
}

// PutCredential seals a credential record under the caller key.
func (v *Vault) PutCredential(key string, c *Credential) error {
	if c == nil {
		return fmt.Errorf("credential must not be nil")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	defer util.WipeBytes(data)
	return v.Put(key, KindCredential, data)
}

// GetCredential opens the credential record under the caller key. The
// caller must Wipe the returned record.
func (v *Vault) GetCredential(key string) (*Credential, error) {
	data, err := v.Get(key, KindCredential)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(data)
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding credential: %w", err)
	}
	return &c, nil
}

// RetryCount returns the stored offline-login failure counter for the
// caller key. A missing record counts as zero.
func (v *Vault) RetryCount(key string) (int, error) {
	data, err := v.Get(key, KindRetryCount)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("decoding retry count: %w", err)
	}
	return n, nil
}

// SetRetryCount stores the offline-login failure counter for the caller key.
func (v *Vault) SetRetryCount(key string, n int) error {
	return v.Put(key, KindRetryCount, []byte(strconv.Itoa(n)))
}
