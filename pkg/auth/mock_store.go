package auth

import (
	"sync"
)

// MockStore implements TokenStore for testing purposes
type MockStore struct {
	tokens map[string]*Token
	mu     sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock token store
func NewMockStore() *MockStore {
	return &MockStore{
		tokens: make(map[string]*Token),
	}
}

// Store saves a token to the mock store
func (m *MockStore) Store(token *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if token == nil || token.Email == "" {
		return ErrInvalidToken
	}

	tokenCopy := *token
	m.tokens[token.Email] = &tokenCopy

	return nil
}

// Retrieve gets a token from the mock store
func (m *MockStore) Retrieve(email string) (*Token, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if email == "" {
		return nil, ErrInvalidToken
	}

	token, exists := m.tokens[email]
	if !exists {
		return nil, ErrTokenNotFound
	}

	tokenCopy := *token
	return &tokenCopy, nil
}

// List returns all stored tokens from the mock store
func (m *MockStore) List() ([]*Token, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []*Token
	for _, token := range m.tokens {
		tokenCopy := *token
		tokens = append(tokens, &tokenCopy)
	}

	return tokens, nil
}

// Delete removes a token from the mock store
func (m *MockStore) Delete(email string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if email == "" {
		return ErrInvalidToken
	}

	if _, exists := m.tokens[email]; !exists {
		return ErrTokenNotFound
	}

	delete(m.tokens, email)
	return nil
}

// Exists checks if a token exists in the mock store
func (m *MockStore) Exists(email string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.tokens[email]
	return exists
}

// Clear removes all tokens from the mock store
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = make(map[string]*Token)
}

// Count returns the number of tokens in the mock store
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tokens)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	manager := &Manager{
		stores: []TokenStore{mockStore},
	}
	return manager, mockStore
}
