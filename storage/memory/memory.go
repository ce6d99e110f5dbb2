// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sync"

	"github.com/jmcleod/gatekey/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Envelope
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Envelope)}
}

func cloneEnvelope(env *storage.Envelope) *storage.Envelope {
	if env == nil {
		return nil
	}
	return &storage.Envelope{
		Ver:        env.Ver,
		Scheme:     env.Scheme,
		Nonce:      append([]byte(nil), env.Nonce...),
		Ciphertext: append([]byte(nil), env.Ciphertext...),
	}
}

func (r *Repository) Put(store, id string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[store]; !ok {
		r.data[store] = make(map[string]*storage.Envelope)
	}
	r.data[store][id] = cloneEnvelope(envelope)
	return nil
}

func (r *Repository) Get(store, id string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	storeData, ok := r.data[store]
	if !ok {
		return nil, storage.ErrStoreNotFound
	}
	env, ok := storeData[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneEnvelope(env), nil
}

func (r *Repository) Delete(store, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	storeData, ok := r.data[store]
	if !ok {
		return storage.ErrStoreNotFound
	}
	if _, ok := storeData[id]; !ok {
		return storage.ErrNotFound
	}
	delete(storeData, id)
	return nil
}
