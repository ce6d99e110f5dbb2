package key

import (
	"encoding/json"
	"fmt"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/internal/uuid"
)

// Encrypter can encrypt data and identify itself.
type Encrypter interface {
	ID() string
	Encrypt([]byte) ([]byte, error)
}

// Decrypter can decrypt data and identify itself.
type Decrypter interface {
	ID() string
	Decrypt([]byte) ([]byte, error)
}

// Key represents a symmetric encryption key that can both encrypt and decrypt.
type Key interface {
	Type() Type
	EncryptKey(Encrypter) (EncryptedKey, error)
	Copy() Key
	Bytes() []byte
	Wipe()
	Encrypter
	Decrypter
}

type key struct {
	keyID   string
	keyType Type
	bytes   []byte
}

func (k *key) ID() string {
	return k.keyID
}

func (k *key) Type() Type {
	return k.keyType
}

func (k *key) EncryptKey(e Encrypter) (EncryptedKey, error) {
	return newEncryptedKey(e, k.keyID, k.keyType, k.bytes)
}

func (k *key) Encrypt(plainText []byte) ([]byte, error) {
	return util.EncryptAES(plainText, k.bytes)
}

func (k *key) Decrypt(cipherText []byte) ([]byte, error) {
	return util.DecryptAES(cipherText, k.bytes)
}

func (k *key) Copy() Key {
	return newWithIDAndTypeAndBytes(k.keyID, k.keyType, k.bytes)
}

// Bytes returns the raw key material. The slice is owned by the key; the
// caller must not retain it past the key's lifetime.
func (k *key) Bytes() []byte {
	return k.bytes
}

// Wipe zeroes the key material in place. The key must not be used afterwards.
func (k *key) Wipe() {
	util.WipeBytes(k.bytes)
}

func newWithIDAndTypeAndBytes(keyID string, t Type, bytes []byte) Key {
	return &key{
		keyID:   keyID,
		keyType: t,
		bytes:   util.CopyBytes(bytes),
	}
}

// NewSymmetricKey generates a new random 256-bit AES symmetric key.
func NewSymmetricKey() (Key, error) {
	rawKey, err := util.NewAESKey()
	if err != nil {
		return nil, fmt.Errorf("generating symmetric key: %w", err)
	}
	return newWithIDAndTypeAndBytes(uuid.New(), Symmetric, rawKey), nil
}

// NewDerivedKey wraps key material derived from a secret (e.g. Argon2id of
// a PIN) in a Key. The caller supplies a stable ID so that a key wrapped
// under this key can later be unwrapped by re-deriving it.
func NewDerivedKey(id string, rawKey []byte) (Key, error) {
	if len(rawKey) != util.AESKeySize {
		return nil, fmt.Errorf("derived key must be %d bytes, got %d", util.AESKeySize, len(rawKey))
	}
	return newWithIDAndTypeAndBytes(id, Derived, rawKey), nil
}

type jsonKey struct {
	KeyID   string `json:"keyId"`
	KeyType Type   `json:"keyType"`
	Bytes   []byte `json:"bytes"`
}

func (k *key) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonKey{
		KeyID:   k.keyID,
		KeyType: k.keyType,
		Bytes:   k.bytes,
	})
}

func (k *key) UnmarshalJSON(b []byte) error {
	var jk jsonKey
	if err := json.Unmarshal(b, &jk); err != nil {
		return fmt.Errorf("unmarshaling key JSON: %w", err)
	}
	k.keyID = jk.KeyID
	k.keyType = jk.KeyType
	k.bytes = jk.Bytes
	return nil
}

// UnmarshalKey deserializes a Key from JSON.
func UnmarshalKey(message json.RawMessage) (Key, error) {
	k := &key{}
	if err := k.UnmarshalJSON(message); err != nil {
		return nil, err
	}
	return k, nil
}
