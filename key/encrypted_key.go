package key

import (
	"encoding/json"
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
)

// Encrypted represents a piece of data that has been encrypted by a specific key.
type Encrypted interface {
	ID() string
	EncryptedBy() string
	Decrypter(Decrypter) (Decrypter, error)
}

// Rotatable can have its encryption rotated from one key to another.
type Rotatable interface {
	Rotate(Decrypter, Encrypter) error
}

// EncryptedKey is a key that has been encrypted by another key.
// It supports rotation to a different encrypting key.
type EncryptedKey interface {
	Encrypted
	Rotatable
	Type() Type
	Copy() EncryptedKey
}

type encryptedKey struct {
	keyID       string
	encryptedBy string
	keyType     Type
	bytes       []byte
}

func (ek *encryptedKey) ID() string {
	return ek.keyID
}

func (ek *encryptedKey) Type() Type {
	return ek.keyType
}

func (ek *encryptedKey) EncryptedBy() string {
	return ek.encryptedBy
}

func (ek *encryptedKey) Decrypter(d Decrypter) (Decrypter, error) {
	if ek.encryptedBy != d.ID() {
		return nil, fmt.Errorf("invalid key: expected %s but got %s", ek.encryptedBy, d.ID())
	}

	bytes, err := d.Decrypt(ek.bytes)
	if err != nil {
		return nil, err
	}

	k := newWithIDAndTypeAndBytes(ek.keyID, ek.keyType, bytes)

	return k, nil
}

func (ek *encryptedKey) Rotate(d Decrypter, e Encrypter) error {
	bytes, err := d.Decrypt(ek.bytes)
	if err != nil {
		return fmt.Errorf("decrypting key for rotation: %w", err)
	}

	encBytes, err := e.Encrypt(bytes)
	if err != nil {
		return fmt.Errorf("encrypting key for rotation: %w", err)
	}

	ek.encryptedBy = e.ID()
	ek.bytes = encBytes

	return nil
}

func (ek *encryptedKey) Copy() EncryptedKey {
	return &encryptedKey{
		keyID:       ek.keyID,
		encryptedBy: ek.encryptedBy,
		keyType:     ek.keyType,
		bytes:       util.CopyBytes(ek.bytes),
	}
}

// UnwrapKey decrypts an EncryptedKey into a usable Key.
func UnwrapKey(ek EncryptedKey, d Decrypter) (Key, error) {
	dec, err := ek.Decrypter(d)
	if err != nil {
		return nil, err
	}
	k, ok := dec.(Key)
	if !ok {
		return nil, fmt.Errorf("unwrapped key %s is not usable as a Key", ek.ID())
	}
	return k, nil
}

func newEncryptedKey(e Encrypter, id string, keyType Type, bytes []byte) (EncryptedKey, error) {
	encBytes, err := e.Encrypt(bytes)
	if err != nil {
		return nil, fmt.Errorf("encrypting key: %w", err)
	}

	return &encryptedKey{
		keyID:       id,
		encryptedBy: e.ID(),
		keyType:     keyType,
		bytes:       encBytes,
	}, nil
}

type jsonEncryptedKey struct {
	KeyID       string `json:"keyId"`
	EncryptedBy string `json:"encryptedBy"`
	KeyType     Type   `json:"keyType"`
	Bytes       []byte `json:"bytes"`
}

func (ek *encryptedKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonEncryptedKey{
		KeyID:       ek.keyID,
		EncryptedBy: ek.encryptedBy,
		KeyType:     ek.keyType,
		Bytes:       ek.bytes,
	})
}

func (ek *encryptedKey) UnmarshalJSON(b []byte) error {
	var jek jsonEncryptedKey
	if err := json.Unmarshal(b, &jek); err != nil {
		return fmt.Errorf("unmarshaling encrypted key JSON: %w", err)
	}
	ek.keyID = jek.KeyID
	ek.encryptedBy = jek.EncryptedBy
	ek.keyType = jek.KeyType
	ek.bytes = jek.Bytes
	return nil
}

// UnmarshalEncryptedKey deserializes an EncryptedKey from JSON.
func UnmarshalEncryptedKey(message json.RawMessage) (EncryptedKey, error) {
	ek := &encryptedKey{}
	if err := ek.UnmarshalJSON(message); err != nil {
		return nil, err
	}
	return ek, nil
}
