package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skillcast/skillcast/internal/crypto"
	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/storage"
	"github.com/skillcast/skillcast/internal/validation"
)

// NewUser содержит данные для создания аккаунта
type NewUser struct {
	Username string
	Email    string
	Password string
	Name     string
}

// Passwords manages hashing, verification and password change.
type Passwords struct {
	logger *slog.Logger
	users  storage.UserStorage
	ledger *Ledger
	hasher *crypto.PasswordHasher
	now    func() time.Time
}

// NewPasswords creates the password lifecycle manager
func NewPasswords(logger *slog.Logger, users storage.UserStorage, ledger *Ledger, hasher *crypto.PasswordHasher) *Passwords {
	return &Passwords{
		logger: logger,
		users:  users,
		ledger: ledger,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register creates a regular user with zero credit.
func (p *Passwords) Register(ctx context.Context, in NewUser) (*models.User, error) {
	return p.create(ctx, "register", in, models.RoleUser, 0)
}

// CreateAdmin creates an administrator with the given starting credit.
func (p *Passwords) CreateAdmin(ctx context.Context, in NewUser, credit int) (*models.User, error) {
	return p.create(ctx, "create_admin", in, models.RoleAdmin, credit)
}

func (p *Passwords) create(ctx context.Context, op string, in NewUser, role models.Role, credit int) (*models.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, invalid(op, "Missing required registration fields")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, invalid(op, err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, invalid(op, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, invalid(op, err.Error())
	}

	hash, err := p.hasher.Hash(in.Password)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to hash password", slog.String("op", op), slog.Any("error", err))
		return nil, wrap(op, ErrRegistrationFailed, err)
	}

	now := p.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
		Credit:       credit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.users.CreateUser(ctx, user); err != nil {
		// Наружу одна и та же ошибка для дубликата и для сбоя хранилища
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			p.logger.WarnContext(ctx, "registration rejected: duplicate account",
				slog.String("op", op),
				slog.String("username", in.Username),
				slog.String("email", in.Email))
		} else {
			p.logger.ErrorContext(ctx, "failed to create user", slog.String("op", op), slog.Any("error", err))
		}
		return nil, wrap(op, ErrRegistrationFailed, err)
	}

	p.logger.InfoContext(ctx, "user created",
		slog.String("op", op),
		slog.String("user_id", user.ID),
		slog.String("role", string(role)))

	return user, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// return the same error and take the same bcrypt time.
func (p *Passwords) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "login"

	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			p.logger.ErrorContext(ctx, "failed to get user", slog.String("op", op), slog.Any("error", err))
			return nil, wrap(op, ErrInternal, err)
		}

		_ = p.hasher.VerifyMissing(password)
		p.logger.WarnContext(ctx, "login failed", slog.String("op", op), slog.String("email", email))
		return nil, wrap(op, ErrInvalidCredentials, nil)
	}

	if err := p.hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			p.logger.ErrorContext(ctx, "failed to verify password",
				slog.String("op", op),
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		}
		p.logger.WarnContext(ctx, "login failed", slog.String("op", op), slog.String("email", email))
		return nil, wrap(op, ErrInvalidCredentials, nil)
	}

	return user, nil
}

// ChangePassword re-verifies the current password, stores the new hash and
// revokes every refresh token of the user.
func (p *Passwords) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	const op = "change_password"

	if currentPassword == "" || newPassword == "" {
		return invalid(op, "Current and new password are required")
	}
	if err := validation.ValidateNewPassword(newPassword); err != nil {
		return invalid(op, err.Error())
	}

	user, err := p.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			p.logger.WarnContext(ctx, "change password: user not found", slog.String("user_id", userID))
			return wrap(op, ErrUserNotFound, err)
		}
		p.logger.ErrorContext(ctx, "failed to get user", slog.String("op", op), slog.Any("error", err))
		return wrap(op, ErrInternal, err)
	}

	if err := p.hasher.Verify(currentPassword, user.PasswordHash); err != nil {
		p.logger.WarnContext(ctx, "change password: current password incorrect", slog.String("user_id", userID))
		return wrap(op, ErrCurrentPasswordIncorrect, nil)
	}

	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to hash password", slog.String("op", op), slog.Any("error", err))
		return wrap(op, ErrInternal, err)
	}

	if err := p.users.UpdatePasswordHash(ctx, userID, hash, p.now()); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return wrap(op, ErrUserNotFound, err)
		}
		p.logger.ErrorContext(ctx, "failed to update password", slog.String("op", op), slog.Any("error", err))
		return wrap(op, ErrInternal, err)
	}

	// Все сессии пользователя становятся недействительными
	revoked, err := p.ledger.RevokeAll(ctx, userID)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to revoke sessions after password change",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return wrap(op, ErrInternal, err)
	}

	p.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", userID),
		slog.Int("sessions_revoked", revoked))

	return nil
}
