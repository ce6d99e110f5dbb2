package storage

import (
	"bytes"
	"testing"

	"github.com/jmcleod/gatekey/internal/util"
)

func TestEnvelope(t *testing.T) {
	key, _ := util.NewAESKey()
	plain := []byte("top secret")
	aad := []byte("context")

	env, err := SealRecord(key, plain, aad)
	if err != nil {
		t.Fatalf("SealRecord failed: %v", err)
	}

	if env.Ver != 1 {
		t.Errorf("expected version 1, got %d", env.Ver)
	}

	decrypted, err := OpenRecord(key, env, aad)
	if err != nil {
		t.Fatalf("OpenRecord failed: %v", err)
	}

	if !bytes.Equal(plain, decrypted) {
		t.Errorf("expected %s, got %s", plain, decrypted)
	}

	t.Run("WrongAAD", func(t *testing.T) {
		_, err := OpenRecord(key, env, []byte("wrong context"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		wrongKey, _ := util.NewAESKey()
		_, err := OpenRecord(wrongKey, env, aad)
		if err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		badEnv := *env
		badEnv.Ver = 99
		_, err := OpenRecord(key, &badEnv, aad)
		if err == nil {
			t.Error("expected error with unsupported version, got nil")
		}
	})

	t.Run("UnsupportedScheme", func(t *testing.T) {
		badEnv := *env
		badEnv.Scheme = "unknown"
		_, err := OpenRecord(key, &badEnv, aad)
		if err == nil {
			t.Error("expected error with unsupported scheme, got nil")
		}
	})
}

func TestPlainRecord(t *testing.T) {
	data := []byte(`legacy-serialized-credential`)
	env := PlainRecord(data)

	if !env.IsPlain() {
		t.Fatal("expected plain envelope")
	}

	got, err := env.PlainData()
	if err != nil {
		t.Fatalf("PlainData failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %s, got %s", data, got)
	}

	// PlainData returns a copy, not a view.
	got[0] = 'X'
	got2, _ := env.PlainData()
	if got2[0] == 'X' {
		t.Error("PlainData should return a copy")
	}

	t.Run("SealedRejectsPlainData", func(t *testing.T) {
		key, _ := util.NewAESKey()
		sealed, err := SealRecord(key, data, nil)
		if err != nil {
			t.Fatalf("SealRecord failed: %v", err)
		}
		if sealed.IsPlain() {
			t.Error("sealed envelope should not report plain")
		}
		if _, err := sealed.PlainData(); err == nil {
			t.Error("expected error reading PlainData from sealed envelope")
		}
	})

	t.Run("PlainRejectsOpenRecord", func(t *testing.T) {
		key, _ := util.NewAESKey()
		if _, err := OpenRecord(key, env, nil); err == nil {
			t.Error("expected error opening plain envelope as sealed")
		}
	})
}
