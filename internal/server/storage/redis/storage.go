package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
)

// DefaultPrefix is prepended to every key written by the ledger.
const DefaultPrefix = "skillcast:"

// deleteTokenScript удаляет запись и убирает токен из множества владельца.
// Возвращает 1 если запись существовала.
var deleteTokenScript = goredis.NewScript(`
local uid = redis.call("HGET", KEYS[1], "user_id")
if not uid then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. uid, ARGV[2])
return 1
`)

// deleteUserTokensScript удаляет все записи пользователя одним скриптом,
// поэтому другие клиенты не видят промежуточного состояния.
var deleteUserTokensScript = goredis.NewScript(`
local tokens = redis.call("SMEMBERS", KEYS[1])
local deleted = 0
for _, t in ipairs(tokens) do
  deleted = deleted + redis.call("DEL", ARGV[1] .. t)
end
redis.call("DEL", KEYS[1])
return deleted
`)

// Storage implements storage.TokenStorage on Redis.
// Each ledger row is a hash with a native expiry; a per-user set indexes the
// token values for revoke-all.
type Storage struct {
	client goredis.UniversalClient
	prefix string
}

// New creates a Redis-backed ledger. An empty prefix selects DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: client, prefix: prefix}
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) tokenPrefix() string         { return s.prefix + "token:" }
func (s *Storage) userPrefix() string          { return s.prefix + "user:" }
func (s *Storage) tokenKey(token string) string { return s.tokenPrefix() + token }
func (s *Storage) userKey(userID string) string { return s.userPrefix() + userID }

// SaveRefreshToken stores a new ledger row
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	key := s.tokenKey(token.Token)

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"id":         token.ID,
			"user_id":    token.UserID,
			"expires_at": token.ExpiresAt.UnixMilli(),
			"created_at": token.CreatedAt.UnixMilli(),
		})
		pipe.PExpireAt(ctx, key, token.ExpiresAt)
		pipe.SAdd(ctx, s.userKey(token.UserID), token.Token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves a row by exact token value
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrTokenNotFound
	}

	return parseToken(token, fields)
}

// GetUserTokens retrieves all live rows owned by a user
func (s *Storage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	values, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query user tokens: %w", err)
	}

	tokens := make([]*models.RefreshToken, 0, len(values))
	for _, value := range values {
		token, err := s.GetRefreshToken(ctx, value)
		if err != nil {
			// запись уже истекла, а индекс еще не подчищен
			if errors.Is(err, storage.ErrTokenNotFound) {
				continue
			}
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

// DeleteRefreshToken deletes a row by token value
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	existed, err := deleteTokenScript.Run(ctx, s.client,
		[]string{s.tokenKey(token)},
		s.userPrefix(), token,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	if existed == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteUserTokens deletes all rows of a user atomically
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	deleted, err := deleteUserTokensScript.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		s.tokenPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}

	return deleted, nil
}

// DeleteExpiredTokens prunes per-user index entries whose rows Redis has
// already expired. Returns the number of pruned entries.
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	pruned := 0

	iter := s.client.Scan(ctx, 0, s.userPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()

		values, err := s.client.SMembers(ctx, userKey).Result()
		if err != nil {
			return pruned, fmt.Errorf("failed to read user tokens: %w", err)
		}

		for _, value := range values {
			exists, err := s.client.Exists(ctx, s.tokenKey(value)).Result()
			if err != nil {
				return pruned, fmt.Errorf("failed to check token: %w", err)
			}
			if exists > 0 {
				continue
			}
			removed, err := s.client.SRem(ctx, userKey, value).Result()
			if err != nil {
				return pruned, fmt.Errorf("failed to prune token: %w", err)
			}
			pruned += int(removed)
		}
	}

	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("failed to scan user keys: %w", err)
	}

	return pruned, nil
}

func parseToken(token string, fields map[string]string) (*models.RefreshToken, error) {
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token entry: %w", err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token entry: %w", err)
	}

	return &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Token:     token,
		ExpiresAt: time.UnixMilli(expiresAt),
		CreatedAt: time.UnixMilli(createdAt),
	}, nil
}
