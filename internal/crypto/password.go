package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinBcryptCost минимально допустимая стоимость bcrypt
	MinBcryptCost = 10
	// DefaultBcryptCost стоимость по умолчанию
	DefaultBcryptCost = 12
)

// ErrPasswordMismatch is returned when a password does not match the stored hash.
var ErrPasswordMismatch = errors.New("password does not match")

// PasswordHasher хеширует и проверяет пароли с помощью bcrypt.
// Соль генерируется bcrypt для каждого хеша и хранится внутри него.
type PasswordHasher struct {
	dummyHash []byte
	cost      int
}

// NewPasswordHasher создает hasher с указанной стоимостью
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < MinBcryptCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", MinBcryptCost, bcrypt.MaxCost, cost)
	}

	// Хеш-заглушка для сравнения, когда пользователь не найден.
	// Считается один раз с той же стоимостью, что и настоящие хеши.
	dummy, err := bcrypt.GenerateFromPassword([]byte("skillcast-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// Cost returns the configured bcrypt cost.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash хеширует пароль. Plaintext нигде не сохраняется.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify проверяет пароль против сохраненного хеша.
// Сравнение внутри bcrypt выполняется за постоянное время.
func (h *PasswordHasher) Verify(password, hash string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}

	return fmt.Errorf("failed to compare password: %w", err)
}

// VerifyMissing spends one bcrypt comparison against the dummy hash and always
// reports a mismatch. Used when the account does not exist so that the
// response time does not reveal it.
func (h *PasswordHasher) VerifyMissing(password string) error {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	return ErrPasswordMismatch
}
