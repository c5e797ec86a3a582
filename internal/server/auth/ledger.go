package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
)

// Ledger records issued refresh tokens and is the authoritative source of
// revocation. A token is usable only while its row exists and has not expired.
type Ledger struct {
	store storage.TokenStorage
	now   func() time.Time
}

// NewLedger creates a ledger over the given token storage backend
func NewLedger(store storage.TokenStorage) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// WithClock returns a copy of the ledger that reads time from now.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	c := *l
	c.now = now
	return &c
}

// Record inserts a new row for token.
func (l *Ledger) Record(ctx context.Context, userID, token string, expiresAt time.Time) error {
	row := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: l.now(),
	}

	if err := l.store.SaveRefreshToken(ctx, row); err != nil {
		return fmt.Errorf("failed to record refresh token: %w", err)
	}
	return nil
}

// IsActive reports whether a row with exactly this value exists and is not expired.
func (l *Ledger) IsActive(ctx context.Context, token string) (bool, error) {
	row, err := l.store.GetRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	return !row.Expired(l.now()), nil
}

// Revoke deletes the row for token. Revoking an unknown token is not an error.
func (l *Ledger) Revoke(ctx context.Context, token string) error {
	err := l.store.DeleteRefreshToken(ctx, token)
	if err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll deletes every row of the user in one atomic storage operation.
func (l *Ledger) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := l.store.DeleteUserTokens(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return n, nil
}

// Sweep removes rows whose expiry has passed.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	n, err := l.store.DeleteExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", err)
	}
	return n, nil
}
