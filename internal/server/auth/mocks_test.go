package auth

import (
	"context"
	"sync"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
)

// mockTokenStorage is an in-memory TokenStorage for ledger tests
type mockTokenStorage struct {
	mu        sync.Mutex
	tokens    map[string]*models.RefreshToken // token -> RefreshToken
	saveError error
	getError  error
	delError  error
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{tokens: make(map[string]*models.RefreshToken)}
}

func (m *mockTokenStorage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *mockTokenStorage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	rt, ok := m.tokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return rt, nil
}

func (m *mockTokenStorage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*models.RefreshToken{}
	for _, rt := range m.tokens {
		if rt.UserID == userID {
			result = append(result, rt)
		}
	}
	return result, nil
}

func (m *mockTokenStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delError != nil {
		return m.delError
	}
	if _, ok := m.tokens[token]; !ok {
		return storage.ErrTokenNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *mockTokenStorage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delError != nil {
		return 0, m.delError
	}
	n := 0
	for value, rt := range m.tokens {
		if rt.UserID == userID {
			delete(m.tokens, value)
			n++
		}
	}
	return n, nil
}

func (m *mockTokenStorage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockTokenStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
