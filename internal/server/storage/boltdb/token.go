package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
)

// SaveRefreshToken stores a new ledger row
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if s.db == nil {
		return ErrStorageClosed
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		tokens := tx.Bucket(bucketTokens)
		if tokens.Get([]byte(token.Token)) != nil {
			return fmt.Errorf("refresh token value already recorded")
		}
		if err := tokens.Put([]byte(token.Token), data); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}

		userBucket, err := tx.Bucket(bucketUserTokens).CreateBucketIfNotExists([]byte(token.UserID))
		if err != nil {
			return fmt.Errorf("failed to create user bucket: %w", err)
		}
		return userBucket.Put([]byte(token.Token), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves a row by exact token value
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if s.db == nil {
		return nil, ErrStorageClosed
	}

	var result *models.RefreshToken

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTokens).Get([]byte(token))
		if data == nil {
			return storage.ErrTokenNotFound
		}

		result = &models.RefreshToken{}
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to unmarshal refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetUserTokens retrieves all rows owned by a user
func (s *Storage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	if s.db == nil {
		return nil, ErrStorageClosed
	}

	result := make([]*models.RefreshToken, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketUserTokens).Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}

		tokens := tx.Bucket(bucketTokens)
		return userBucket.ForEach(func(k, _ []byte) error {
			data := tokens.Get(k)
			if data == nil {
				return nil
			}
			token := &models.RefreshToken{}
			if err := json.Unmarshal(data, token); err != nil {
				return fmt.Errorf("failed to unmarshal refresh token: %w", err)
			}
			result = append(result, token)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteRefreshToken deletes a row by token value
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	if s.db == nil {
		return ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteToken(tx, []byte(token))
	})
}

// DeleteUserTokens deletes all rows of a user in one transaction
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	if s.db == nil {
		return 0, ErrStorageClosed
	}

	deleted := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUserTokens)
		userBucket := users.Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}

		tokens := tx.Bucket(bucketTokens)
		err := userBucket.ForEach(func(k, _ []byte) error {
			if tokens.Get(k) == nil {
				return nil
			}
			deleted++
			return tokens.Delete(k)
		})
		if err != nil {
			return err
		}

		return users.DeleteBucket([]byte(userID))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}

	return deleted, nil
}

// DeleteExpiredTokens removes all rows whose expiry has passed
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrStorageClosed
	}

	now := time.Now()
	deleted := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		// Сначала собираем ключи: удалять во время ForEach нельзя
		var expired [][]byte
		err := tx.Bucket(bucketTokens).ForEach(func(k, v []byte) error {
			var token models.RefreshToken
			if err := json.Unmarshal(v, &token); err != nil {
				return fmt.Errorf("failed to unmarshal refresh token: %w", err)
			}
			if token.Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := deleteToken(tx, k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return deleted, nil
}

// deleteToken удаляет запись и ссылку на нее из bucket пользователя
func deleteToken(tx *bbolt.Tx, key []byte) error {
	tokens := tx.Bucket(bucketTokens)
	data := tokens.Get(key)
	if data == nil {
		return storage.ErrTokenNotFound
	}

	var token models.RefreshToken
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}

	if err := tokens.Delete(key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	users := tx.Bucket(bucketUserTokens)
	if userBucket := users.Bucket([]byte(token.UserID)); userBucket != nil {
		if err := userBucket.Delete(key); err != nil {
			return fmt.Errorf("failed to delete user token link: %w", err)
		}
		if k, _ := userBucket.Cursor().First(); k == nil {
			if err := users.DeleteBucket([]byte(token.UserID)); err != nil {
				return fmt.Errorf("failed to delete user bucket: %w", err)
			}
		}
	}

	return nil
}
