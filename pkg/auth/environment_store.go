package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements TokenStore using environment variables. It lets
// CI jobs and scripts inject a refresh token without touching the keychain.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve gets a token from environment variables
func (e *EnvironmentStore) Retrieve(email string) (*Token, error) {
	refreshToken := os.Getenv("RINGHIST_REFRESH_TOKEN")
	if refreshToken == "" {
		return nil, ErrTokenNotFound
	}

	if email == "" {
		email = os.Getenv("RINGHIST_EMAIL")
	}
	if email == "" {
		email = "default"
	}

	return &Token{
		Email:        email,
		RefreshToken: refreshToken,
		LastModified: time.Now(),
	}, nil
}

// List returns a single token if environment variables are set
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve("")
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment token is set
func (e *EnvironmentStore) Exists(email string) bool {
	return os.Getenv("RINGHIST_REFRESH_TOKEN") != ""
}
