package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/jwt"
	"github.com/skillcast/skillcast/internal/server/storage"
)

// Session is the result of a successful login.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// Service composes the password manager, token issuer and ledger into the
// register, login, refresh, logout and change-password flows.
type Service struct {
	logger    *slog.Logger
	users     storage.UserStorage
	passwords *Passwords
	issuer    *jwt.Issuer
	ledger    *Ledger
}

// NewService creates the session orchestrator.
// A nil issuer is accepted; login then fails with ErrSecretsNotConfigured.
func NewService(logger *slog.Logger, users storage.UserStorage, passwords *Passwords, issuer *jwt.Issuer, ledger *Ledger) *Service {
	return &Service{
		logger:    logger,
		users:     users,
		passwords: passwords,
		issuer:    issuer,
		ledger:    ledger,
	}
}

// Register creates a regular account.
func (s *Service) Register(ctx context.Context, in NewUser) (*models.User, error) {
	return s.passwords.Register(ctx, in)
}

// Login verifies credentials, mints a token pair and records the refresh
// token. Each login produces an independent ledger row.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "login"

	user, err := s.passwords.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuer.Issue(user.Identity())
	if err != nil {
		if errors.Is(err, jwt.ErrSecretNotConfigured) {
			s.logger.ErrorContext(ctx, "jwt secrets are not configured", slog.String("op", op))
			return nil, wrap(op, ErrSecretsNotConfigured, err)
		}
		s.logger.ErrorContext(ctx, "failed to issue tokens", slog.String("op", op), slog.Any("error", err))
		return nil, wrap(op, ErrInternal, err)
	}

	if err := s.ledger.Record(ctx, user.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record refresh token",
			slog.String("op", op),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, wrap(op, ErrInternal, err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return &Session{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh exchanges a recorded refresh token for a new access token.
// The ledger is checked first; a revoked token fails even with a valid signature.
// The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "refresh"

	if refreshToken == "" {
		return "", wrap(op, ErrRefreshTokenRequired, nil)
	}

	active, err := s.ledger.IsActive(ctx, refreshToken)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check ledger", slog.String("op", op), slog.Any("error", err))
		return "", wrap(op, ErrInternal, err)
	}
	if !active {
		s.logger.WarnContext(ctx, "refresh rejected: token not in ledger", slog.String("op", op))
		return "", wrap(op, ErrInvalidRefreshToken, nil)
	}

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrSecretNotConfigured) {
			s.logger.ErrorContext(ctx, "jwt secrets are not configured", slog.String("op", op))
			return "", wrap(op, ErrSecretsNotConfigured, err)
		}
		s.logger.WarnContext(ctx, "refresh rejected: token verification failed",
			slog.String("op", op),
			slog.Any("error", err))
		return "", wrap(op, ErrInvalidRefreshToken, err)
	}

	// Роль перечитывается из хранилища, в refresh токене ее нет
	user, err := s.users.GetUserByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "refresh rejected: user no longer exists",
				slog.String("op", op),
				slog.String("user_id", claims.ID))
			return "", wrap(op, ErrInvalidRefreshToken, err)
		}
		s.logger.ErrorContext(ctx, "failed to get user", slog.String("op", op), slog.Any("error", err))
		return "", wrap(op, ErrInternal, err)
	}

	access, _, err := s.issuer.IssueAccess(user.Identity())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue access token", slog.String("op", op), slog.Any("error", err))
		return "", wrap(op, ErrInternal, err)
	}

	return access, nil
}

// Logout revokes the given refresh token. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.ledger.Revoke(ctx, refreshToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh token", slog.String("op", "logout"), slog.Any("error", err))
		return wrap("logout", ErrLogoutFailed, err)
	}
	return nil
}

// ChangePassword changes the password and invalidates every session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return s.passwords.ChangePassword(ctx, userID, currentPassword, newPassword)
}

// Sweep removes expired ledger rows.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.ledger.Sweep(ctx)
}
