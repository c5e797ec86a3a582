package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skillcast/skillcast/internal/iocli"
	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/auth"
	"github.com/skillcast/skillcast/internal/server/storage"
	"github.com/skillcast/skillcast/internal/validation"
)

// Учетные данные администратора по умолчанию
const (
	adminEmail    = "admin@skillcast.com"
	adminUsername = "admin_user"
	adminName     = "Admin"
	adminCredit   = 500

	// passwordEnv позволяет задать пароль без интерактивного ввода
	passwordEnv = "SEED_ADMIN_PASSWORD"
)

var errPasswordsDiffer = errors.New("passwords do not match")

type seeder struct {
	logger    *slog.Logger
	users     storage.UserStorage
	passwords *auth.Passwords
	term      iocli.IO
	getenv    func(string) string
}

// seed creates the administrator account unless an account with the admin
// email already exists. Returns nil user when nothing was created.
func (s *seeder) seed(ctx context.Context) (*models.User, error) {
	_, err := s.users.GetUserByEmail(ctx, adminEmail)
	if err == nil {
		s.term.Println("Admin user already exists")
		return nil, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	password, err := s.password()
	if err != nil {
		return nil, err
	}

	user, err := s.passwords.CreateAdmin(ctx, auth.NewUser{
		Username: adminUsername,
		Email:    adminEmail,
		Password: password,
		Name:     adminName,
	}, adminCredit)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.InfoContext(ctx, "admin user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))
	s.term.Printf("Admin user created: %s <%s>\n", user.Username, user.Email)

	return user, nil
}

// password берет пароль из окружения или запрашивает дважды
func (s *seeder) password() (string, error) {
	if pw := s.getenv(passwordEnv); pw != "" {
		if err := validation.ValidateNewPassword(pw); err != nil {
			return "", fmt.Errorf("%s: %w", passwordEnv, err)
		}
		return pw, nil
	}

	pw, err := s.term.ReadPassword("Admin password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if err := validation.ValidateNewPassword(pw); err != nil {
		return "", err
	}

	confirm, err := s.term.ReadPassword("Repeat password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if pw != confirm {
		return "", errPasswordsDiffer
	}

	return pw, nil
}
