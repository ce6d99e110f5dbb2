package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmcleod/gatekey/storage"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewRepository()
	store := "vault"
	id := "https://login.example.com_AuthContext"
	env := &storage.Envelope{
		Ver:        1,
		Scheme:     storage.SchemeSealed,
		Nonce:      []byte("nonce1234567"),
		Ciphertext: []byte("ciphertext"),
	}

	t.Run("PutAndGet", func(t *testing.T) {
		err := repo.Put(store, id, env)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(store, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if got.Ver != env.Ver || got.Scheme != env.Scheme || !bytes.Equal(got.Nonce, env.Nonce) || !bytes.Equal(got.Ciphertext, env.Ciphertext) {
			t.Errorf("Get returned wrong envelope: %+v", got)
		}

		// Test isolation (cloning)
		got.Nonce[0] = 'X'
		got2, _ := repo.Get(store, id)
		if got2.Nonce[0] == 'X' {
			t.Error("Memory repository should return clones of envelopes")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get("nonexistent", id)
		if !errors.Is(err, storage.ErrStoreNotFound) {
			t.Errorf("Get with nonexistent store: got %v, want ErrStoreNotFound", err)
		}

		_, err = repo.Get(store, "nonexistent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get with nonexistent record: got %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Put(store, "doomed", env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := repo.Delete(store, "doomed"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(store, "doomed"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
		}
		if err := repo.Delete(store, "doomed"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second Delete: got %v, want ErrNotFound", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		updated := &storage.Envelope{Ver: 1, Scheme: storage.SchemeSealed, Nonce: make([]byte, 12), Ciphertext: []byte("updated")}
		if err := repo.Put(store, id, updated); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get(store, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got.Ciphertext, []byte("updated")) {
			t.Errorf("expected overwritten ciphertext, got %s", got.Ciphertext)
		}
	})
}
