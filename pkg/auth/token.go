package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Token holds a Ring account's OAuth credentials. The refresh token is the
// durable secret; access tokens are short-lived and refreshed on demand.
type Token struct {
	Email        string    `json:"email"`
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Expired reports whether the cached access token needs refreshing
func (t *Token) Expired() bool {
	if t.AccessToken == "" {
		return true
	}
	// Refresh a minute early to avoid using a token at the expiry edge
	return time.Now().After(t.ExpiresAt.Add(-time.Minute))
}

// TokenStore is the interface for storing and retrieving tokens
type TokenStore interface {
	// Store saves a token for a given account
	Store(token *Token) error

	// Retrieve gets the token for a specific email
	Retrieve(email string) (*Token, error)

	// List returns all stored tokens
	List() ([]*Token, error)

	// Delete removes the token for a specific email
	Delete(email string) error

	// Exists checks if a token exists for an email
	Exists(email string) bool
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a new token manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []TokenStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit stores
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves a token using the first available store
func (m *Manager) Store(token *Token) error {
	if token.Email == "" {
		return errors.New("email is required")
	}
	if token.RefreshToken == "" {
		return errors.New("refresh token is required")
	}

	token.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(token); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return errors.New("no available token stores")
}

// Retrieve gets a token from the first store that has it
func (m *Manager) Retrieve(email string) (*Token, error) {
	for _, store := range m.stores {
		if token, err := store.Retrieve(email); err == nil && token != nil {
			return token, nil
		}
	}
	return nil, fmt.Errorf("token not found for account: %s", email)
}

// RetrieveDefault gets the token for the default account or the first available
func (m *Manager) RetrieveDefault() (*Token, error) {
	// Environment wins so CI and scripts can inject a token
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if token, err := envStore.Retrieve(""); err == nil && token != nil {
			return token, nil
		}
	}

	tokens, err := m.List()
	if err == nil && len(tokens) > 0 {
		return tokens[0], nil
	}

	return nil, ErrTokenNotFound
}

// List returns all stored tokens from all stores
func (m *Manager) List() ([]*Token, error) {
	tokenMap := make(map[string]*Token)

	for _, store := range m.stores {
		tokens, err := store.List()
		if err != nil {
			continue
		}
		for _, token := range tokens {
			// Use the most recently modified version
			if existing, ok := tokenMap[token.Email]; !ok || token.LastModified.After(existing.LastModified) {
				tokenMap[token.Email] = token
			}
		}
	}

	var result []*Token
	for _, token := range tokenMap {
		result = append(result, token)
	}

	return result, nil
}

// Delete removes a token from all stores
func (m *Manager) Delete(email string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(email); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("token not found for account: %s", email)
	}

	return nil
}

// DeleteAll removes all stored tokens
func (m *Manager) DeleteAll() error {
	tokens, err := m.List()
	if err != nil {
		return err
	}

	for _, token := range tokens {
		_ = m.Delete(token.Email)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "ringhist")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "ringhist")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "ringhist")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "ringhist")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeToken creates a copy of the token with sensitive data masked
func SanitizeToken(token *Token) *Token {
	if token == nil {
		return nil
	}

	return &Token{
		Email:        token.Email,
		RefreshToken: maskString(token.RefreshToken),
		AccessToken:  maskString(token.AccessToken),
		ExpiresAt:    token.ExpiresAt,
		LastModified: token.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
