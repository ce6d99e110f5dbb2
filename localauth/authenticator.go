package localauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/key"
	"github.com/jmcleod/gatekey/keystore"
	"github.com/jmcleod/gatekey/storage"
)

// Authenticator manages the local factors for one logical id. All
// operations on an instance are serialized; issuing a second concurrent
// challenge-driven call before the first resolves blocks until it finishes.
//
// Once an instance authenticates it stays authenticated until Disable or
// process exit, bounded only by Policy.ReauthAfter.
type Authenticator struct {
	id         string
	repo       storage.Repository
	presenter  Presenter
	policy     Policy
	logger     *slog.Logger
	deviceKeys DeviceKeySource
	kdfParams  util.Argon2idParams

	mu            sync.Mutex
	authenticated bool
	authAt        time.Time
	master        *memguard.Enclave // JSON-serialized master key
}

var _ keystore.Keystore = (*Authenticator)(nil)

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithPolicy overrides the default retry policy.
func WithPolicy(p Policy) Option {
	return func(a *Authenticator) {
		a.policy = p
	}
}

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithKDFParams overrides the Argon2id parameters used for PIN key
// derivation. The default is the interactive profile, sized for PIN entry
// on constrained devices.
func WithKDFParams(p util.Argon2idParams) Option {
	return func(a *Authenticator) {
		a.kdfParams = p
	}
}

// WithDeviceKeySource sets the platform keystore hook used by the
// biometric factor. Defaults to a software source backed by the same
// repository.
func WithDeviceKeySource(src DeviceKeySource) Option {
	return func(a *Authenticator) {
		a.deviceKeys = src
	}
}

// New creates an Authenticator for the given logical id.
func New(id string, repo storage.Repository, presenter Presenter, opts ...Option) *Authenticator {
	interactive, _ := util.Argon2idProfile(util.KDFProfileInteractive)
	a := &Authenticator{
		id:        id,
		repo:      repo,
		presenter: presenter,
		policy:    DefaultPolicy(),
		kdfParams: interactive,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.deviceKeys == nil {
		a.deviceKeys = NewSoftwareKeySource(repo)
	}
	return a
}

// ID returns the logical id this authenticator manages.
func (a *Authenticator) ID() string {
	return a.id
}

// IsAuthenticated reports whether a factor has successfully authenticated
// in this instance and the ReauthAfter window, if any, has not elapsed.
func (a *Authenticator) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isAuthenticatedLocked()
}

func (a *Authenticator) isAuthenticatedLocked() bool {
	if !a.authenticated {
		return false
	}
	if a.policy.ReauthAfter > 0 && time.Since(a.authAt) > a.policy.ReauthAfter {
		return false
	}
	return true
}

// MasterKey returns a copy of the unlocked master key. The caller must
// Wipe the copy. Returns keystore.ErrNotAuthenticated while locked.
func (a *Authenticator) MasterKey() (key.Key, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.isAuthenticatedLocked() || a.master == nil {
		return nil, keystore.ErrNotAuthenticated
	}
	buf, err := a.master.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master key enclave: %w", err)
	}
	defer buf.Destroy()
	return key.UnmarshalKey(buf.Bytes())
}

// EnabledFactors returns the factors currently enabled for this id.
func (a *Authenticator) EnabledFactors() ([]FactorType, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var factors []FactorType
	for _, f := range []FactorType{FactorPIN, FactorBiometric} {
		st, err := a.loadState(f)
		if err != nil {
			return nil, err
		}
		if st.Enabled {
			factors = append(factors, f)
		}
	}
	return factors, nil
}

// StateOf returns the lifecycle state of one factor.
func (a *Authenticator) StateOf(factor FactorType) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, err := a.loadState(factor)
	if err != nil {
		return Disabled, err
	}
	if !st.Enabled {
		return Disabled, nil
	}
	if a.isAuthenticatedLocked() {
		return EnabledAuthenticated, nil
	}
	return EnabledUnauthenticated, nil
}

// setMasterLocked seals the master key into the instance enclave and flips
// the monotonic authenticated flag.
func (a *Authenticator) setMasterLocked(master key.Key) error {
	data, err := json.Marshal(master)
	if err != nil {
		return fmt.Errorf("sealing master key: %w", err)
	}
	a.master = memguard.NewEnclave(data)
	a.authenticated = true
	a.authAt = time.Now()
	return nil
}

func (a *Authenticator) clearMasterLocked() {
	a.master = nil
	a.authenticated = false
	a.authAt = time.Time{}
}

// deriveWrapKey runs the KDF over the supplied secret and returns the
// factor wrap key plus the commitment proving knowledge of the secret.
// The caller must Wipe the returned key.
func deriveWrapKey(id string, pin []byte, salt []byte, params util.Argon2idParams) (key.Key, []byte, error) {
	raw, err := util.DeriveArgon2idKey(string(pin), salt, params)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving wrap key: %w", err)
	}
	defer util.WipeBytes(raw)

	commitment, err := util.HKDF(raw, nil, []byte("gatekey/commitment"))
	if err != nil {
		return nil, nil, fmt.Errorf("deriving commitment: %w", err)
	}

	k, err := key.NewDerivedKey("pin/"+id, raw)
	if err != nil {
		return nil, nil, err
	}
	return k, commitment, nil
}
