// Package storage provides the storage abstraction layer for encrypted
// credential records.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStoreNotFound is returned when a store namespace does not exist.
var ErrStoreNotFound = errors.New("store not found")

// Repository defines the interface for record storage. Records are
// addressed by (store, id) where store is a namespace such as "vault" or
// "prefs". The interface deliberately offers no enumeration primitive;
// components that need to find records by key shape keep their own
// registry of live ids.
type Repository interface {
	Put(store string, id string, envelope *Envelope) error
	Get(store string, id string) (*Envelope, error)
	Delete(store string, id string) error
}
