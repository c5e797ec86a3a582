package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// Storage implements storage.UserStorage and storage.TokenStorage on PostgreSQL via gorm
type Storage struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection and migrates the schema.
func New(ctx context.Context, dsn string) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres database: %w", err)
	}

	s := &Storage{db: db}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// migrate создает таблицы; users первой, чтобы ledger ссылался на существующую таблицу
func (s *Storage) migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&userRecord{}); err != nil {
		return fmt.Errorf("migration failed (users): %w", err)
	}
	if err := db.AutoMigrate(&refreshTokenRecord{}); err != nil {
		return fmt.Errorf("migration failed (refresh_tokens): %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	rec := userToRecord(user)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	user.Role = models.Role(rec.Role)
	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByUsername retrieves user by username
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, "id = ?", userID)
}

func (s *Storage) getUser(ctx context.Context, cond string, value string) (*models.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).Where(cond, value).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return rec.toModel(), nil
}

// UpdatePasswordHash replaces the stored password hash
func (s *Storage) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&userRecord{}).
		Where("id = ?", userID).
		Updates(map[string]any{"password_hash": passwordHash, "updated_at": updatedAt})
	if result.Error != nil {
		return fmt.Errorf("failed to update password hash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// SaveRefreshToken stores a new ledger row
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	rec := tokenToRecord(token)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a row by exact token value
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rec refreshTokenRecord
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return rec.toModel(), nil
}

// GetUserTokens retrieves all rows owned by a user
func (s *Storage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	var recs []refreshTokenRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query user tokens: %w", err)
	}

	tokens := make([]*models.RefreshToken, 0, len(recs))
	for i := range recs {
		tokens = append(tokens, recs[i].toModel())
	}
	return tokens, nil
}

// DeleteRefreshToken deletes a row by token value
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(&refreshTokenRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete refresh token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}

// DeleteUserTokens deletes all rows of a user in a single statement
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&refreshTokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// DeleteExpiredTokens removes all rows whose expiry has passed
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&refreshTokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
