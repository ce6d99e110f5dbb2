// Package prefs is the persistent preference surface: plain string/int
// key-value storage for non-secret data, with an optional secure tier that
// routes values through the encrypted vault.
package prefs

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jmcleod/gatekey/storage"
	"github.com/jmcleod/gatekey/vault"
)

// storeName is the repository namespace for plain preference records.
const storeName = "prefs"

// prefSuffix namespaces preference ids the same way vault entries are
// namespaced, so a preference key can never collide with another record
// kind sharing the store.
const prefSuffix = "_Preference"

// ErrNotFound is returned when no preference exists under the key.
var ErrNotFound = errors.New("preference not found")

// Prefs stores preferences. Plain values go to the repository unencrypted;
// secure values are sealed into the vault and readable only while its
// gating authenticator reports authenticated.
type Prefs struct {
	repo  storage.Repository
	vault *vault.Vault
}

// Option configures a Prefs store.
type Option func(*Prefs)

// WithVault enables the secure tier.
func WithVault(v *vault.Vault) Option {
	return func(p *Prefs) {
		p.vault = v
	}
}

// New creates a preference store over the repository.
func New(repo storage.Repository, opts ...Option) *Prefs {
	p := &Prefs{repo: repo}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func prefID(key string) string {
	return key + prefSuffix
}

// Set stores a string preference. With secure set, the value is sealed
// into the vault instead of the plain store and any plain value under the
// same key is removed, so a key never exists in both tiers.
func (p *Prefs) Set(key, value string, secure bool) error {
	if secure {
		if p.vault == nil {
			return fmt.Errorf("secure preferences require a vault")
		}
		if err := p.vault.Put("pref:"+key, vault.KindCredential, []byte(value)); err != nil {
			return err
		}
		return p.removePlain(key)
	}
	env := storage.PlainRecord([]byte(value))
	if err := p.repo.Put(storeName, prefID(key), env); err != nil {
		return fmt.Errorf("persisting preference %q: %w", key, err)
	}
	return nil
}

// Get returns a string preference, checking the plain tier first and then
// the secure tier. A locked vault surfaces its not-authenticated error
// rather than pretending the key is absent.
func (p *Prefs) Get(key string) (string, error) {
	env, err := p.repo.Get(storeName, prefID(key))
	if err == nil {
		data, err := env.PlainData()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrStoreNotFound) {
		return "", err
	}

	if p.vault == nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	data, err := p.vault.Get("pref:"+key, vault.KindCredential)
	if errors.Is(err, vault.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetInt stores an integer preference.
func (p *Prefs) SetInt(key string, value int, secure bool) error {
	return p.Set(key, strconv.Itoa(value), secure)
}

// Int returns an integer preference.
func (p *Prefs) Int(key string) (int, error) {
	s, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("preference %q is not an int: %w", key, err)
	}
	return n, nil
}

// SetInt64 stores a 64-bit integer preference.
func (p *Prefs) SetInt64(key string, value int64, secure bool) error {
	return p.Set(key, strconv.FormatInt(value, 10), secure)
}

// Int64 returns a 64-bit integer preference.
func (p *Prefs) Int64(key string) (int64, error) {
	s, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("preference %q is not an int64: %w", key, err)
	}
	return n, nil
}

// Remove deletes a preference from both tiers. Removing a missing key is
// not an error; a locked vault is.
func (p *Prefs) Remove(key string) error {
	if err := p.removePlain(key); err != nil {
		return err
	}
	if p.vault == nil {
		return nil
	}
	err := p.vault.Delete("pref:"+key, vault.KindCredential)
	if errors.Is(err, vault.ErrNotFound) {
		return nil
	}
	return err
}

func (p *Prefs) removePlain(key string) error {
	err := p.repo.Delete(storeName, prefID(key))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return nil
	}
	return err
}
