package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "wosexport"
	keyringPrefix  = "account_"
	// keyringIndex lists the stored account IDs, since the keychain cannot
	// be enumerated
	keyringIndex = "index"
)

// KeyringStore keeps accounts in the system keychain
type KeyringStore struct{}

// NewKeyringStore fails when no keychain is reachable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Channel == "" || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+account.ID(), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	ids, err := k.index()
	if err != nil {
		return err
	}
	if !slices.Contains(ids, account.ID()) {
		return k.saveIndex(append(ids, account.ID()))
	}
	return nil
}

func (k *KeyringStore) Retrieve(channel, username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	return k.get(AccountID(channel, username))
}

func (k *KeyringStore) get(id string) (*Account, error) {
	data, err := keyring.Get(keyringService, keyringPrefix+id)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns the accounts named in the index, skipping entries removed
// outside this tool
func (k *KeyringStore) List() ([]*Account, error) {
	ids, err := k.index()
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(ids))
	for _, id := range ids {
		account, err := k.get(id)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(channel, username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	id := AccountID(channel, username)
	if err := keyring.Delete(keyringService, keyringPrefix+id); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	ids, err := k.index()
	if err != nil {
		return err
	}
	return k.saveIndex(slices.DeleteFunc(ids, func(s string) bool { return s == id }))
}

func (k *KeyringStore) Exists(channel, username string) bool {
	if username == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+AccountID(channel, username))
	return err == nil
}

func (k *KeyringStore) index() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return ids, nil
}

func (k *KeyringStore) saveIndex(ids []string) error {
	if len(ids) == 0 {
		err := keyring.Delete(keyringService, keyringIndex)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndex, string(data))
}
