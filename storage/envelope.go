package storage

import (
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
)

// Record encoding schemes. Legacy records written before encryption-at-rest
// carry SchemePlain and are migrated by the vault on first read.
const (
	SchemeSealed = "aes256gcm"
	SchemePlain  = "plain"
)

// Envelope is a stored record. Sealed envelopes contain AES-256-GCM
// encrypted data; plain envelopes carry a legacy serialized payload.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	cipher, err := util.EncryptAESWithAAD(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}

	// util.EncryptAESWithAAD returns nonce || ciphertext.
	return &Envelope{
		Ver:        1,
		Scheme:     SchemeSealed,
		Nonce:      cipher[:12],
		Ciphertext: cipher[12:],
	}, nil
}

// OpenRecord decrypts a sealed Envelope using the given record key and AAD.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != SchemeSealed {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	// Reconstruct nonce || ciphertext without mutating envelope fields.
	fullCipher := make([]byte, len(envelope.Nonce)+len(envelope.Ciphertext))
	copy(fullCipher, envelope.Nonce)
	copy(fullCipher[len(envelope.Nonce):], envelope.Ciphertext)

	return util.DecryptAESWithAAD(fullCipher, recordKey, aad)
}

// PlainRecord wraps a legacy unencrypted payload in an Envelope.
func PlainRecord(data []byte) *Envelope {
	return &Envelope{
		Ver:        1,
		Scheme:     SchemePlain,
		Ciphertext: util.CopyBytes(data),
	}
}

// IsPlain reports whether the envelope holds a legacy unencrypted payload.
func (e *Envelope) IsPlain() bool {
	return e.Scheme == SchemePlain
}

// PlainData returns the payload of a plain envelope.
func (e *Envelope) PlainData() ([]byte, error) {
	if !e.IsPlain() {
		return nil, fmt.Errorf("envelope scheme %s is not plain", e.Scheme)
	}
	return util.CopyBytes(e.Ciphertext), nil
}
