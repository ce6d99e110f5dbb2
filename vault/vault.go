package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/keystore"
	"github.com/jmcleod/gatekey/storage"
)

// Vault is a namespaced encrypted store gated by a keystore. Every entry
// is sealed under its own record key derived from the keystore's master
// key, so no single key compromise exposes the whole store. All operations
// on an instance are serialized by the vault's own lock; the registry
// read-modify-write in particular must never interleave.
type Vault struct {
	id     string
	repo   storage.Repository
	keys   keystore.Keystore
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

// New creates a Vault handle for the given vault ID, storage backend, and
// gating keystore.
func New(id string, repo storage.Repository, keys keystore.Keystore, opts ...Option) *Vault {
	v := &Vault{
		id:   id,
		repo: repo,
		keys: keys,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return v
}

// ID returns the vault's identifier.
func (v *Vault) ID() string {
	return v.id
}

// openMaster returns a plaintext copy of the keystore's master key bytes.
// The caller must wipe the copy.
func (v *Vault) openMaster() ([]byte, error) {
	mk, err := v.keys.MasterKey()
	if err != nil {
		return nil, err
	}
	defer mk.Wipe()
	return util.CopyBytes(mk.Bytes()), nil
}

// recordKeyFor derives the per-record encryption key. Domain-separating on
// the full entry id means re-keying a record under a new id never reuses
// key material.
func (v *Vault) recordKeyFor(master []byte, id string) ([]byte, error) {
	return util.HKDF(master, nil, []byte("gatekey/record/"+v.id+"/"+id))
}

// recordAAD binds a ciphertext to its vault and entry id so envelopes
// cannot be swapped between entries.
func (v *Vault) recordAAD(id string) []byte {
	return []byte(v.id + "\x00" + id)
}

// Put seals data under (key, kind), replacing any existing entry, and adds
// the entry to the live registry. The payload write is fatal on failure;
// the registry write is bookkeeping and is only logged.
func (v *Vault) Put(key string, kind Kind, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	master, err := v.openMaster()
	if err != nil {
		return err
	}
	defer util.WipeBytes(master)

	id := entryID(key, kind)
	if err := v.putLocked(master, id, data); err != nil {
		return err
	}
	v.updateRegistryLocked(master, func(r registry) {
		r.add(id, kind)
	})
	return nil
}

func (v *Vault) putLocked(master []byte, id string, data []byte) error {
	recordKey, err := v.recordKeyFor(master, id)
	if err != nil {
		return err
	}
	defer util.WipeBytes(recordKey)

	env, err := storage.SealRecord(recordKey, data, v.recordAAD(id))
	if err != nil {
		return fmt.Errorf("sealing entry %q: %w", id, err)
	}
	if err := v.repo.Put(v.id, id, env); err != nil {
		return fmt.Errorf("persisting entry %q: %w", id, err)
	}
	return nil
}

// Get opens the entry under (key, kind). A legacy plain-serialized record
// encountered here is transparently migrated: re-sealed in the current
// encoding and registered, then returned as-is.
func (v *Vault) Get(key string, kind Kind) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	master, err := v.openMaster()
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(master)

	id := entryID(key, kind)
	env, err := v.repo.Get(v.id, id)
	if errors.Is(err, storage.ErrStoreNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if env.IsPlain() {
		return v.migrateLegacyLocked(master, id, kind, env)
	}

	recordKey, err := v.recordKeyFor(master, id)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(recordKey)

	data, err := storage.OpenRecord(recordKey, env, v.recordAAD(id))
	if err != nil {
		return nil, fmt.Errorf("opening entry %q: %w", id, err)
	}
	return data, nil
}

// migrateLegacyLocked rewrites a plain record in the sealed encoding and
// makes sure the registry knows about it.
func (v *Vault) migrateLegacyLocked(master []byte, id string, kind Kind, env *storage.Envelope) ([]byte, error) {
	data, err := env.PlainData()
	if err != nil {
		return nil, err
	}
	if err := v.putLocked(master, id, data); err != nil {
		return nil, fmt.Errorf("migrating legacy entry %q: %w", id, err)
	}
	v.updateRegistryLocked(master, func(r registry) {
		r.add(id, kind)
	})
	v.logger.Info("migrated legacy record", "vault", v.id, "entry", id)
	return data, nil
}

// Delete removes the entry under (key, kind) and drops it from the live
// registry. Deleting a missing entry returns ErrNotFound.
func (v *Vault) Delete(key string, kind Kind) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	master, err := v.openMaster()
	if err != nil {
		return err
	}
	defer util.WipeBytes(master)

	id := entryID(key, kind)
	err = v.repo.Delete(v.id, id)
	if errors.Is(err, storage.ErrStoreNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	v.updateRegistryLocked(master, func(r registry) {
		r.remove(id)
	})
	return nil
}

// DeleteMatching removes every live entry whose caller key starts with
// prefix and whose kind matches. It returns the number of entries removed.
// Individual deletions that fail are collected; the registry is still
// updated for the ones that succeeded.
func (v *Vault) DeleteMatching(prefix string, kind Kind) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	master, err := v.openMaster()
	if err != nil {
		return 0, err
	}
	defer util.WipeBytes(master)

	reg, err := v.loadRegistryLocked(master)
	if err != nil {
		return 0, fmt.Errorf("loading registry: %w", err)
	}

	var (
		deleted int
		errs    []error
	)
	for _, id := range reg.ids() {
		if !strings.HasPrefix(id, prefix) || !strings.HasSuffix(id, string(kind)) {
			continue
		}
		err := v.repo.Delete(v.id, id)
		if err != nil && !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrStoreNotFound) {
			errs = append(errs, fmt.Errorf("deleting entry %q: %w", id, err))
			continue
		}
		// A record already gone still leaves the registry.
		reg.remove(id)
		if err == nil {
			deleted++
		}
	}
	if err := v.saveRegistryLocked(master, reg); err != nil {
		v.logger.Error("persisting registry", "vault", v.id, "error", err)
	}
	return deleted, errors.Join(errs...)
}

// Entries returns the ids of all live entries known to the registry.
func (v *Vault) Entries() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	master, err := v.openMaster()
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(master)

	reg, err := v.loadRegistryLocked(master)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	return reg.ids(), nil
}
