// Package auth stores institutional-channel accounts outside the config file.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Account is a login on an institutional channel
type Account struct {
	Channel      string    `json:"channel"`
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// ID identifies an account across stores
func (a *Account) ID() string {
	return AccountID(a.Channel, a.Username)
}

// AccountID joins a channel and a username into a store key
func AccountID(channel, username string) string {
	return strings.ToLower(strings.TrimSpace(channel)) + ":" + strings.TrimSpace(username)
}

// CredentialStore is a backend that can hold accounts
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(channel, username string) (*Account, error)
	List() ([]*Account, error)
	Delete(channel, username string) error
	Exists(channel, username string) bool
}

// Manager tries its stores in order: the system keychain, an encrypted
// file, and the environment
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a Manager whose encrypted store lives in dir. An empty
// dir selects the user config directory.
func NewManager(dir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a Manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Channel == "" {
		return errors.New("channel is required")
	}
	if account.Username == "" {
		return errors.New("username is required")
	}
	if account.Password == "" {
		return errors.New("password is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the account from the first store that has it
func (m *Manager) Retrieve(channel, username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(channel, username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, AccountID(channel, username))
}

// Default returns the account to use on channel: the environment account
// first, then the most recently saved one
func (m *Manager) Default(channel string) (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(channel, ""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if strings.EqualFold(account.Channel, channel) {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for channel %s", ErrCredentialsNotFound, channel)
}

// List merges the accounts of every store, newest first
func (m *Manager) List() ([]*Account, error) {
	byID := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byID[account.ID()]; !ok || account.LastModified.After(existing.LastModified) {
				byID[account.ID()] = account
			}
		}
	}

	result := make([]*Account, 0, len(byID))
	for _, account := range byID {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].ID() < result[j].ID()
	})
	return result, nil
}

// Delete removes the account from every store holding it
func (m *Manager) Delete(channel, username string) error {
	deleted := false
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(channel, username)
		switch {
		case err == nil:
			deleted = true
		case !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable):
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, AccountID(channel, username))
}

// ConfigDir returns the per-user directory for credential files
func ConfigDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "wosexport")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "wosexport")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "wosexport")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "wosexport")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount returns a copy safe to print
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	masked := *account
	masked.Password = maskString(account.Password)
	return &masked
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
