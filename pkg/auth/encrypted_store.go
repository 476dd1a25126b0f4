package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	vaultVersion = 2
)

// PassphraseEnv overrides the generated passphrase of the encrypted store
const PassphraseEnv = "WOSEXPORT_PASSPHRASE"

// EncryptedFileStore keeps accounts in one AES-GCM sealed file. The key is
// the passphrase stretched with PBKDF2 over a per-file salt.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.RWMutex
}

// vault is the on-disk envelope
type vault struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore opens the store at path. The passphrase comes from
// PassphraseEnv or from a generated .passphrase file next to the store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), ".passphrase"))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store adds or replaces an account
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Channel == "" || account.Username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		accounts[account.ID()] = *account
		return nil
	})
}

// Retrieve returns one account
func (e *EncryptedFileStore) Retrieve(channel, username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, _, err := e.read()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[AccountID(channel, username)]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns every account in the file
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, _, err := e.read()
	if errors.Is(err, ErrCredentialsNotFound) {
		return []*Account{}, nil
	}
	if err != nil {
		return nil, err
	}

	list := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, &account)
	}
	return list, nil
}

// Delete removes one account. The file goes with the last one.
func (e *EncryptedFileStore) Delete(channel, username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		id := AccountID(channel, username)
		if _, ok := accounts[id]; !ok {
			return ErrCredentialsNotFound
		}
		delete(accounts, id)
		return nil
	})
}

// Exists reports whether the account is stored
func (e *EncryptedFileStore) Exists(channel, username string) bool {
	account, err := e.Retrieve(channel, username)
	return err == nil && account != nil
}

// update applies fn to the stored accounts and writes the result back,
// keeping the file's salt
func (e *EncryptedFileStore) update(fn func(map[string]Account) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.read()
	switch {
	case errors.Is(err, ErrCredentialsNotFound):
		accounts = make(map[string]Account)
	case err != nil:
		return err
	}

	if err := fn(accounts); err != nil {
		return err
	}
	if len(accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return e.write(accounts, salt)
}

// read opens the vault. A missing file reports ErrCredentialsNotFound.
func (e *EncryptedFileStore) read() (map[string]Account, []byte, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return nil, nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	plain, err := open(e.key(v.Salt), v.Sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt credentials, wrong passphrase? %w", err)
	}

	var accounts map[string]Account
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, v.Salt, nil
}

// write seals the accounts and replaces the file atomically. A nil salt
// starts a new one.
func (e *EncryptedFileStore) write(accounts map[string]Account, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	sealed, err := seal(e.key(salt), plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt accounts: %w", err)
	}

	content, err := json.MarshalIndent(vault{
		Version:  vaultVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
}

// loadPassphrase reads PassphraseEnv, then the passphrase file, and creates
// the file with a random passphrase when neither exists
func loadPassphrase(file string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return []byte(pass), nil
	}
	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.URLEncoding.EncodeToString(raw))
	if err := os.WriteFile(file, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encrypts plain and prefixes the nonce
func seal(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// open reverses seal
func open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, sealed[:n], sealed[n:], nil)
}
