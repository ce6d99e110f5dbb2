package key

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestKey(t *testing.T) {
	t.Run("Symmetric", func(t *testing.T) {
		k, err := NewSymmetricKey()
		if err != nil {
			t.Fatalf("NewSymmetricKey failed: %v", err)
		}
		plainText := []byte("hello")
		cipherText, err := k.Encrypt(plainText)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		decrypted, err := k.Decrypt(cipherText)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(plainText, decrypted) {
			t.Error("Decrypted text does not match plaintext")
		}
	})

	t.Run("Derived", func(t *testing.T) {
		raw := make([]byte, 32)
		for i := range raw {
			raw[i] = byte(i)
		}
		k, err := NewDerivedKey("pin/device-1", raw)
		if err != nil {
			t.Fatalf("NewDerivedKey failed: %v", err)
		}
		if k.ID() != "pin/device-1" {
			t.Errorf("expected stable ID, got %s", k.ID())
		}
		if k.Type() != Derived {
			t.Errorf("expected Derived type, got %v", k.Type())
		}

		if _, err := NewDerivedKey("short", []byte("too short")); err == nil {
			t.Error("expected error for short key material")
		}
	})
}

func TestEncryptedKey(t *testing.T) {
	k, _ := NewSymmetricKey()
	master, _ := NewSymmetricKey()

	ek, err := k.EncryptKey(master)
	if err != nil {
		t.Fatalf("EncryptKey failed: %v", err)
	}

	if ek.EncryptedBy() != master.ID() {
		t.Errorf("expected encrypted by %s, got %s", master.ID(), ek.EncryptedBy())
	}

	dec, err := ek.Decrypter(master)
	if err != nil {
		t.Fatalf("Decrypter failed: %v", err)
	}
	if dec.ID() != k.ID() {
		t.Errorf("expected decrypter ID %s, got %s", k.ID(), dec.ID())
	}

	// Rotation to a new wrapping key.
	newMaster, _ := NewSymmetricKey()
	err = ek.Rotate(master, newMaster)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if ek.EncryptedBy() != newMaster.ID() {
		t.Errorf("expected new master ID %s, got %s", newMaster.ID(), ek.EncryptedBy())
	}

	_, err = ek.Decrypter(newMaster)
	if err != nil {
		t.Fatalf("Decrypter after rotation failed: %v", err)
	}

	t.Run("WrongDecrypter", func(t *testing.T) {
		other, _ := NewSymmetricKey()
		if _, err := ek.Decrypter(other); err == nil {
			t.Error("expected error decrypting with unrelated key")
		}
	})
}

// A master key wrapped under a PIN-derived key must survive a PIN change by
// rotating the wrap, without regenerating the master key itself.
func TestRotateUnderDerivedKeys(t *testing.T) {
	master, _ := NewSymmetricKey()

	oldRaw := make([]byte, 32)
	newRaw := make([]byte, 32)
	for i := range oldRaw {
		oldRaw[i] = byte(i)
		newRaw[i] = byte(255 - i)
	}
	oldPin, _ := NewDerivedKey("pin/app", oldRaw)
	newPin, _ := NewDerivedKey("pin/app", newRaw)

	wrapped, err := master.EncryptKey(oldPin)
	if err != nil {
		t.Fatalf("EncryptKey failed: %v", err)
	}

	if err := wrapped.Rotate(oldPin, newPin); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	unwrapped, err := wrapped.Decrypter(newPin)
	if err != nil {
		t.Fatalf("Decrypter after rotation failed: %v", err)
	}
	if unwrapped.ID() != master.ID() {
		t.Errorf("expected unwrapped master ID %s, got %s", master.ID(), unwrapped.ID())
	}

	// The old derived key must no longer unwrap.
	if _, err := wrapped.Decrypter(oldPin); err == nil {
		t.Error("old PIN key should not unwrap after rotation")
	}

	// Unwrapped key decrypts data encrypted by the original master.
	cipher, _ := master.Encrypt([]byte("offline credentials"))
	mk, err := UnwrapKey(wrapped, newPin)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	plain, err := mk.Decrypt(cipher)
	if err != nil {
		t.Fatalf("Decrypt with unwrapped master failed: %v", err)
	}
	if !bytes.Equal(plain, []byte("offline credentials")) {
		t.Error("unwrapped master produced wrong plaintext")
	}
}

func TestJSON(t *testing.T) {
	t.Run("KeyJSON", func(t *testing.T) {
		k, _ := NewSymmetricKey()
		data, err := json.Marshal(k)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		k2, err := UnmarshalKey(data)
		if err != nil {
			t.Fatalf("UnmarshalKey failed: %v", err)
		}

		if k2.ID() != k.ID() {
			t.Errorf("expected ID %s, got %s", k.ID(), k2.ID())
		}
	})

	t.Run("EncryptedKeyJSON", func(t *testing.T) {
		k, _ := NewSymmetricKey()
		master, _ := NewSymmetricKey()
		ek, _ := k.EncryptKey(master)

		data, err := json.Marshal(ek)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		ek2, err := UnmarshalEncryptedKey(data)
		if err != nil {
			t.Fatalf("UnmarshalEncryptedKey failed: %v", err)
		}

		if ek2.ID() != ek.ID() {
			t.Errorf("expected ID %s, got %s", ek.ID(), ek2.ID())
		}
	})

	t.Run("TypeJSON", func(t *testing.T) {
		for _, v := range []Type{Symmetric, Derived} {
			data, err := v.MarshalJSON()
			if err != nil {
				t.Fatalf("Marshal failed for %v: %v", v, err)
			}
			var v2 Type
			if err := v2.UnmarshalJSON(data); err != nil {
				t.Fatalf("Unmarshal failed for %v: %v", v, err)
			}
			if v != v2 {
				t.Errorf("expected %v, got %v", v, v2)
			}
		}
	})
}
