package auth

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatekey/key"
	"github.com/jmcleod/gatekey/keystore"
	"github.com/jmcleod/gatekey/secret"
	"github.com/jmcleod/gatekey/storage/memory"
	"github.com/jmcleod/gatekey/vault"
)

const offlineKey = "https://idp.example.com"

func createTestOfflineProvider(t *testing.T, maxRetries int) (*OfflineProvider, *vault.Vault) {
	t.Helper()
	master, err := key.NewSymmetricKey()
	require.NoError(t, err)
	v := vault.New("auth-vault", memory.NewRepository(), keystore.NewStatic(master),
		vault.WithLogger(slog.New(slog.DiscardHandler)))
	return NewOfflineProvider(OfflineConfig{MaxRetries: maxRetries}, v), v
}

func offlineSession(username, password string) *Session {
	s := NewSession(ProviderOffline, ModeOffline, MechanismForm)
	s.OfflineCredentialKey = offlineKey
	s.Input[InputUsername] = username
	if password != "" {
		s.Password = secret.FromString(password)
	}
	return s
}

func seedCredentials(t *testing.T, v *vault.Vault) {
	t.Helper()
	require.NoError(t, v.PutCredential(offlineKey, &vault.Credential{
		Username: "alice",
		Password: []byte("hunter2"),
		TenantID: "acme",
	}))
}

func TestOfflineLoginSuccess(t *testing.T) {
	p, v := createTestOfflineProvider(t, 3)
	seedCredentials(t, v)

	s := offlineSession("alice", "hunter2")
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)

	assert.Equal(t, StatusSuccess, s.Status)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "acme", s.IdentityDomain)
	assert.Equal(t, offlineKey, s.OfflineCredentialKey)
}

func TestOfflineRemembersCredentials(t *testing.T) {
	p, v := createTestOfflineProvider(t, 3)

	// No cached credentials: the supplied pair becomes the cached set.
	s := offlineSession("alice", "hunter2")
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)
	assert.Equal(t, StatusSuccess, s.Status)

	stored, err := v.GetCredential(offlineKey)
	require.NoError(t, err)
	defer stored.Wipe()
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, []byte("hunter2"), stored.Password)
}

func TestOfflineAwaitsCredentials(t *testing.T) {
	p, v := createTestOfflineProvider(t, 3)
	seedCredentials(t, v)

	s := offlineSession("alice", "")
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.ErrorIs(t, err, ErrInputRequired)
	delta.apply(s)
	assert.Equal(t, StatusAwaitingOfflineCreds, s.Status)
}

func TestOfflineRetryBudget(t *testing.T) {
	p, v := createTestOfflineProvider(t, 3)
	seedCredentials(t, v)

	// Two mismatches advance the persisted counter.
	for i := 1; i <= 2; i++ {
		s := offlineSession("alice", "wrong")
		_, err := p.Authenticate(t.Context(), &Request{}, s)
		require.ErrorIs(t, err, ErrAuthenticationFailed)
		n, err := v.RetryCount(offlineKey)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	// The third exhausts the budget and purges the credentials.
	s := offlineSession("alice", "wrong")
	_, err := p.Authenticate(t.Context(), &Request{}, s)
	require.ErrorIs(t, err, ErrRetryLimitExceeded)

	_, err = v.GetCredential(offlineKey)
	require.ErrorIs(t, err, vault.ErrNotFound)
}

func TestOfflineSuccessResetsRetryCount(t *testing.T) {
	p, v := createTestOfflineProvider(t, 5)
	seedCredentials(t, v)

	s := offlineSession("alice", "wrong")
	_, err := p.Authenticate(t.Context(), &Request{}, s)
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	s = offlineSession("alice", "hunter2")
	delta, err := p.Authenticate(t.Context(), &Request{}, s)
	require.NoError(t, err)
	delta.apply(s)
	assert.Equal(t, StatusSuccess, s.Status)

	n, err := v.RetryCount(offlineKey)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOfflineIsValidRequiresStoredCredentials(t *testing.T) {
	p, v := createTestOfflineProvider(t, 3)

	s := NewSession(ProviderOffline, ModeOffline, MechanismForm)
	s.Status = StatusSuccess
	s.OfflineCredentialKey = offlineKey
	assert.False(t, p.IsValid(t.Context(), s, false))

	seedCredentials(t, v)
	assert.True(t, p.IsValid(t.Context(), s, false))
}

func TestOfflineLogoutDeletesCredentials(t *testing.T) {
	p, v := createTestOfflineProvider(t, 3)
	seedCredentials(t, v)
	require.NoError(t, v.SetRetryCount(offlineKey, 1))

	s := NewSession(ProviderOffline, ModeOffline, MechanismForm)
	s.OfflineCredentialKey = offlineKey
	_, err := p.Logout(t.Context(), s, LogoutFlags{DeleteCredentials: true})
	require.NoError(t, err)

	_, err = v.GetCredential(offlineKey)
	require.ErrorIs(t, err, vault.ErrNotFound)
	n, err := v.RetryCount(offlineKey)
	require.NoError(t, err)
	assert.Zero(t, n)
}
