package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
)

func newToken(userID, value string, ttl time.Duration) *models.RefreshToken {
	now := time.Now()
	return &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func TestTokenStorage_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	token := newToken(userID, "findme", 24*time.Hour)
	require.NoError(t, s.SaveRefreshToken(ctx, token))

	tests := []struct {
		wantError error
		name      string
		token     string
	}{
		{name: "get existing token", token: "findme"},
		{name: "get non-existent token", token: "notfound", wantError: storage.ErrTokenNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieved, err := s.GetRefreshToken(ctx, tt.token)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, retrieved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, token.ID, retrieved.ID)
			assert.Equal(t, token.UserID, retrieved.UserID)
			assert.Equal(t, token.ExpiresAt.UnixMilli(), retrieved.ExpiresAt.UnixMilli())
		})
	}
}

func TestTokenStorage_SaveDuplicateValue(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID, "same", time.Hour)))

	// Значение токена уникально глобально
	err := s.SaveRefreshToken(ctx, newToken(userID, "same", time.Hour))
	assert.Error(t, err)
}

func TestTokenStorage_SaveUnknownUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.SaveRefreshToken(ctx, newToken("ghost", "t", time.Hour))
	assert.Error(t, err, "foreign key must reject rows of unknown users")
}

func TestTokenStorage_GetUserTokens(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID1 := createTestUser(t, ctx, s)
	userID2 := createTestUser(t, ctx, s)

	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID1, "token1", time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID1, "token2", 2*time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID2, "token3", time.Hour)))

	tests := []struct {
		name          string
		userID        string
		expectedCount int
	}{
		{name: "user with 2 tokens", userID: userID1, expectedCount: 2},
		{name: "user with 1 token", userID: userID2, expectedCount: 1},
		{name: "user without tokens", userID: "nobody", expectedCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := s.GetUserTokens(ctx, tt.userID)
			require.NoError(t, err)
			assert.Len(t, tokens, tt.expectedCount)
			for _, token := range tokens {
				assert.Equal(t, tt.userID, token.UserID)
			}
		})
	}
}

func TestTokenStorage_DeleteRefreshToken(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID, "keep", time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID, "drop", time.Hour)))

	require.NoError(t, s.DeleteRefreshToken(ctx, "drop"))

	_, err := s.GetRefreshToken(ctx, "drop")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	// Удаляется ровно одна строка
	tokens, err := s.GetUserTokens(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "keep", tokens[0].Token)

	err = s.DeleteRefreshToken(ctx, "drop")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestTokenStorage_DeleteUserTokens(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID1 := createTestUser(t, ctx, s)
	userID2 := createTestUser(t, ctx, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID1, fmt.Sprintf("u1-%d", i), time.Hour)))
	}
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID2, "u2", time.Hour)))

	deleted, err := s.DeleteUserTokens(ctx, userID1)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	tokens, err := s.GetUserTokens(ctx, userID1)
	require.NoError(t, err)
	assert.Empty(t, tokens)

	// Токены другого пользователя не затронуты
	_, err = s.GetRefreshToken(ctx, "u2")
	assert.NoError(t, err)

	deleted, err = s.DeleteUserTokens(ctx, userID1)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestTokenStorage_DeleteExpiredTokens(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID, "expired1", -time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID, "expired2", -time.Minute)))
	require.NoError(t, s.SaveRefreshToken(ctx, newToken(userID, "valid", time.Hour)))

	deleted, err := s.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.GetRefreshToken(ctx, "valid")
	assert.NoError(t, err)
	_, err = s.GetRefreshToken(ctx, "expired1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestTokenStorage_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	// Параллельные логины одного пользователя дают независимые строки
	const logins = 10
	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.SaveRefreshToken(ctx, newToken(userID, fmt.Sprintf("device-%d", i), time.Hour))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	tokens, err := s.GetUserTokens(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, tokens, logins)
}
