package postgres

import (
	"time"

	"github.com/skillcast/skillcast/internal/models"
)

// userRecord is the gorm row for the users table.
type userRecord struct {
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	Name         *string   `gorm:"size:255"`
	ID           string    `gorm:"primaryKey;type:uuid"`
	Username     string    `gorm:"size:32;not null;uniqueIndex"`
	Email        string    `gorm:"size:254;not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null;default:user"`
	Credit       int       `gorm:"not null;default:0"`
}

func (userRecord) TableName() string { return "users" }

// refreshTokenRecord is the gorm row for the refresh token ledger.
type refreshTokenRecord struct {
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"not null;uniqueIndex"`
}

func (refreshTokenRecord) TableName() string { return "refresh_tokens" }

func userToRecord(u *models.User) userRecord {
	rec := userRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Credit:       u.Credit,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if rec.Role == "" {
		rec.Role = string(models.RoleUser)
	}
	if u.Name != "" {
		name := u.Name
		rec.Name = &name
	}
	return rec
}

func (r *userRecord) toModel() *models.User {
	u := &models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         models.Role(r.Role),
		Credit:       r.Credit,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Name != nil {
		u.Name = *r.Name
	}
	return u
}

func tokenToRecord(t *models.RefreshToken) refreshTokenRecord {
	return refreshTokenRecord{
		ID:        t.ID,
		UserID:    t.UserID,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
}

func (r *refreshTokenRecord) toModel() *models.RefreshToken {
	return &models.RefreshToken{
		ID:        r.ID,
		UserID:    r.UserID,
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
