package auth

import (
	"sync"
)

// MockStore is an in-memory CredentialStore with error injection, for tests
type MockStore struct {
	accounts map[string]*Account
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates an empty MockStore
func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]*Account)}
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Channel == "" || account.Username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *account
	m.accounts[account.ID()] = &stored
	return nil
}

func (m *MockStore) Retrieve(channel, username string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[AccountID(channel, username)]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	found := *account
	return &found, nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		found := *account
		accounts = append(accounts, &found)
	}
	return accounts, nil
}

func (m *MockStore) Delete(channel, username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := AccountID(channel, username)
	if _, ok := m.accounts[id]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *MockStore) Exists(channel, username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[AccountID(channel, username)]
	return ok
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

// NewMockManager returns a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
