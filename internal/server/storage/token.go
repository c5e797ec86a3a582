package storage

import (
	"context"

	"github.com/skillcast/skillcast/internal/models"
)

// TokenStorage defines persistence for the refresh token ledger.
// Rows are only inserted and deleted, never updated.
type TokenStorage interface {
	// SaveRefreshToken stores a new ledger row
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken retrieves a row by exact token value
	// Returns ErrTokenNotFound if token doesn't exist
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// GetUserTokens retrieves all rows owned by a user
	// Returns empty slice if no tokens found
	GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	// DeleteRefreshToken deletes a row by token value
	// Returns ErrTokenNotFound if token doesn't exist
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteUserTokens deletes all rows of a user as one atomic operation
	// Returns number of deleted tokens
	DeleteUserTokens(ctx context.Context, userID string) (int, error)

	// DeleteExpiredTokens removes all rows whose expiry has passed
	// Returns number of deleted tokens
	DeleteExpiredTokens(ctx context.Context) (int, error)
}
