package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Channel: "sunshine", Username: "student42", Password: "correct-horse-battery"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("Sunshine", "student42")
	require.NoError(t, err)
	assert.Equal(t, "correct-horse-battery", retrieved.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	sanitized := SanitizeAccount(account)
	assert.NotEqual(t, account.Password, sanitized.Password)
	assert.Equal(t, account.Username, sanitized.Username)
	assert.Equal(t, "correct-horse-battery", account.Password, "sanitizing must not modify the original")

	require.NoError(t, manager.Delete("sunshine", "student42"))
	_, err = manager.Retrieve("sunshine", "student42")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Zero(t, mockStore.Count())

	err = manager.Delete("sunshine", "student42")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()
	assert.Error(t, manager.Store(&Account{Username: "u", Password: "p"}))
	assert.Error(t, manager.Store(&Account{Channel: "sunshine", Password: "p"}))
	assert.Error(t, manager.Store(&Account{Channel: "sunshine", Username: "u"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	backup := NewMockStore()
	manager := NewManagerWithStores(broken, backup)

	require.NoError(t, manager.Store(&Account{Channel: "sunshine", Username: "u", Password: "p"}))
	assert.Zero(t, broken.Count())
	assert.Equal(t, 1, backup.Count())
}

func TestManagerDefault(t *testing.T) {
	manager, store := NewMockManager()
	old := &Account{Channel: "sunshine", Username: "old", Password: "p", LastModified: time.Now().Add(-time.Hour)}
	recent := &Account{Channel: "sunshine", Username: "recent", Password: "p", LastModified: time.Now()}
	other := &Account{Channel: "elsewhere", Username: "x", Password: "p", LastModified: time.Now().Add(time.Hour)}
	for _, a := range []*Account{old, recent, other} {
		require.NoError(t, store.Store(a))
	}

	account, err := manager.Default("sunshine")
	require.NoError(t, err)
	assert.Equal(t, "recent", account.Username)

	_, err = manager.Default("nowhere")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerDefaultPrefersEnvironment(t *testing.T) {
	t.Setenv("WOSEXPORT_USERNAME", "env-user")
	t.Setenv("WOSEXPORT_PASSWORD", "env-pass")
	t.Setenv("WOSEXPORT_CHANNEL", "")

	store := NewMockStore()
	require.NoError(t, store.Store(&Account{Channel: "sunshine", Username: "saved", Password: "p", LastModified: time.Now()}))
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	account, err := manager.Default("sunshine")
	require.NoError(t, err)
	assert.Equal(t, "env-user", account.Username)
	assert.Equal(t, "sunshine", account.Channel)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Channel: "sunshine", Username: "encrypted_user", Password: "plaintext-secret"}
	require.NoError(t, store.Store(account))

	retrieved, err := store.Retrieve("sunshine", "encrypted_user")
	require.NoError(t, err)
	assert.Equal(t, account.Password, retrieved.Password)
	assert.True(t, store.Exists("sunshine", "encrypted_user"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "plaintext-secret")
	assert.NotContains(t, string(content), "encrypted_user")

	t.Setenv(PassphraseEnv, "another passphrase")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("sunshine", "encrypted_user")
	assert.Error(t, err, "a wrong passphrase cannot decrypt the file")

	require.NoError(t, store.Delete("sunshine", "encrypted_user"))
	assert.NoFileExists(t, path, "deleting the last account removes the file")
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Channel: "sunshine", Username: "u", Password: "p"}))
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	accounts, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("WOSEXPORT_USERNAME", "env-user")
	t.Setenv("WOSEXPORT_PASSWORD", "env-pass")
	t.Setenv("WOSEXPORT_CHANNEL", "sunshine")

	store := NewEnvironmentStore()
	account, err := store.Retrieve("", "")
	require.NoError(t, err)
	assert.Equal(t, &Account{Channel: "sunshine", Username: "env-user", Password: "env-pass", LastModified: account.LastModified}, account)

	_, err = store.Retrieve("other", "")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	_, err = store.Retrieve("sunshine", "someone-else")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("sunshine", "env-user"), ErrStoreUnavailable)

	t.Setenv("WOSEXPORT_PASSWORD", "")
	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Store(&Account{Channel: "sunshine", Username: "mockuser", Password: "p"}))
	assert.True(t, store.Exists("SUNSHINE", "mockuser"))

	store.ListError = errors.New("injected error")
	_, err := store.List()
	assert.EqualError(t, err, "injected error")

	manager := NewManagerWithStores(store)
	accounts, err := manager.List()
	require.NoError(t, err, "a failing store is skipped when listing")
	assert.Empty(t, accounts)
}
