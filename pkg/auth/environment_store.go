package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvUsername  = "IGSAVED_USERNAME"
	EnvSessionID = "IGSAVED_SESSION_ID"
	EnvDSUserID  = "IGSAVED_DS_USER_ID"
	EnvCSRFToken = "IGSAVED_CSRF_TOKEN"
)

// EnvironmentStore is a read-only CredentialStore backed by IGSAVED_*
// environment variables
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a store reading the process environment
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. username only names the result
// when IGSAVED_USERNAME is unset.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account := &Account{
		Username:     e.getenv(EnvUsername),
		SessionID:    e.getenv(EnvSessionID),
		DSUserID:     e.getenv(EnvDSUserID),
		CSRFToken:    e.getenv(EnvCSRFToken),
		LastModified: time.Now(),
	}
	if account.Credentials().Validate() != nil {
		return nil, ErrCredentialsNotFound
	}

	switch {
	case account.Username == "" && username != "":
		account.Username = username
	case account.Username == "":
		account.Username = "default"
	case username != "" && username != account.Username:
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns a single account if the environment is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
