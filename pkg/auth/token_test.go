package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager, _ := NewMockManager()

	token := &Token{
		Email:        "user@example.com",
		RefreshToken: "refresh-secret-value",
	}
	require.NoError(t, manager.Store(token))

	got, err := manager.Retrieve("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "refresh-secret-value", got.RefreshToken)
	assert.False(t, got.LastModified.IsZero())
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(&Token{RefreshToken: "x"}))
	assert.Error(t, manager.Store(&Token{Email: "user@example.com"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = ErrStoreUnavailable
	working := NewMockStore()

	manager := NewManagerWithStores(failing, working)

	token := &Token{Email: "user@example.com", RefreshToken: "secret"}
	require.NoError(t, manager.Store(token))

	assert.Zero(t, failing.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerRetrieveDefaultFromEnvironment(t *testing.T) {
	t.Setenv("RINGHIST_REFRESH_TOKEN", "env-token")
	t.Setenv("RINGHIST_EMAIL", "env@example.com")

	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())

	token, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token.RefreshToken)
	assert.Equal(t, "env@example.com", token.Email)
}

func TestManagerRetrieveDefaultNoTokens(t *testing.T) {
	t.Setenv("RINGHIST_REFRESH_TOKEN", "")

	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())

	_, err := manager.RetrieveDefault()
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestManagerDelete(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(&Token{Email: "user@example.com", RefreshToken: "secret"}))
	require.NoError(t, manager.Delete("user@example.com"))
	assert.Zero(t, store.Count())

	assert.Error(t, manager.Delete("user@example.com"))
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()

	require.NoError(t, older.Store(&Token{
		Email:        "user@example.com",
		RefreshToken: "stale",
		LastModified: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, newer.Store(&Token{
		Email:        "user@example.com",
		RefreshToken: "fresh",
		LastModified: time.Now(),
	}))

	manager := NewManagerWithStores(older, newer)

	tokens, err := manager.List()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "fresh", tokens[0].RefreshToken)
}

func TestTokenExpired(t *testing.T) {
	assert.True(t, (&Token{}).Expired())

	live := &Token{AccessToken: "x", ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, live.Expired())

	nearExpiry := &Token{AccessToken: "x", ExpiresAt: time.Now().Add(30 * time.Second)}
	assert.True(t, nearExpiry.Expired())
}

func TestSanitizeToken(t *testing.T) {
	token := &Token{
		Email:        "user@example.com",
		RefreshToken: "very-long-refresh-token-value",
		AccessToken:  "short",
	}

	masked := SanitizeToken(token)
	assert.Equal(t, "user@example.com", masked.Email)
	assert.Equal(t, "very...alue", masked.RefreshToken)
	assert.Equal(t, "********", masked.AccessToken)

	// The original is untouched
	assert.Equal(t, "very-long-refresh-token-value", token.RefreshToken)
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("RINGHIST_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(t.TempDir() + "/tokens.enc")
	require.NoError(t, err)

	token := &Token{
		Email:        "user@example.com",
		RefreshToken: "refresh-secret",
		LastModified: time.Now(),
	}
	require.NoError(t, store.Store(token))

	got, err := store.Retrieve("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "refresh-secret", got.RefreshToken)

	tokens, err := store.List()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, store.Delete("user@example.com"))
	_, err = store.Retrieve("user@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("RINGHIST_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(dir + "/tokens.enc")
	require.NoError(t, err)
	require.NoError(t, store.Store(&Token{Email: "user@example.com", RefreshToken: "secret"}))

	t.Setenv("RINGHIST_PASSPHRASE", "second")
	reopened, err := NewEncryptedFileStore(dir + "/tokens.enc")
	require.NoError(t, err)

	_, err = reopened.Retrieve("user@example.com")
	assert.Error(t, err)
}
