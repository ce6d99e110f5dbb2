package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/gatekey/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GATEKEY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GATEKEY_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("could not ensure schema: %v", err)
	}

	// Clean tables for test isolation.
	pool.Exec(ctx, "DELETE FROM records") //nolint:errcheck

	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM records") //nolint:errcheck
		pool.Close()
	})
	return NewRepository(pool)
}

func TestPostgresStorage(t *testing.T) {
	s := newTestStore(t)

	store := "vault"
	id := "https://login.example.com_AuthContext"
	env := &storage.Envelope{Ver: 1, Scheme: storage.SchemeSealed, Nonce: make([]byte, 12), Ciphertext: []byte("cipher")}

	t.Run("PutGet", func(t *testing.T) {
		err := s.Put(store, id, env)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := s.Get(store, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Ver != env.Ver {
			t.Errorf("expected version %d, got %d", env.Ver, got.Ver)
		}
		if got.Scheme != env.Scheme {
			t.Errorf("expected scheme %q, got %q", env.Scheme, got.Scheme)
		}
		if string(got.Ciphertext) != string(env.Ciphertext) {
			t.Errorf("expected ciphertext %q, got %q", env.Ciphertext, got.Ciphertext)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		updated := &storage.Envelope{Ver: 1, Scheme: storage.SchemeSealed, Nonce: make([]byte, 12), Ciphertext: []byte("updated")}
		if err := s.Put(store, id, updated); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(store, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got.Ciphertext) != "updated" {
			t.Errorf("expected overwritten ciphertext, got %q", got.Ciphertext)
		}
	})

	t.Run("MissingStore", func(t *testing.T) {
		_, err := s.Get("nope", id)
		if !errors.Is(err, storage.ErrStoreNotFound) {
			t.Errorf("got %v, want ErrStoreNotFound", err)
		}
	})

	t.Run("MissingRecord", func(t *testing.T) {
		_, err := s.Get(store, "nope")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Put(store, "doomed", env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Delete(store, "doomed"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete(store, "doomed"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second Delete: got %v, want ErrNotFound", err)
		}
	})
}
