package auth

import (
	"os"
	"strings"
	"time"

	"wosexport/pkg/config"
)

// EnvironmentStore reads a single read-only account from
// WOSEXPORT_USERNAME and WOSEXPORT_PASSWORD
type EnvironmentStore struct{}

// NewEnvironmentStore creates an EnvironmentStore over the process
// environment
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty username matches it;
// the channel comes from WOSEXPORT_CHANNEL when set.
func (e *EnvironmentStore) Retrieve(channel, username string) (*Account, error) {
	envUser := os.Getenv(config.EnvPrefix + "USERNAME")
	password := os.Getenv(config.EnvPrefix + "PASSWORD")
	if envUser == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	envChannel := os.Getenv(config.EnvPrefix + "CHANNEL")
	switch {
	case envChannel == "":
		envChannel = channel
	case channel != "" && !strings.EqualFold(channel, envChannel):
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Channel:      envChannel,
		Username:     envUser,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("", "")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(channel, username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(channel, username string) bool {
	_, err := e.Retrieve(channel, username)
	return err == nil
}
