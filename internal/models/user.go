package models

import "time"

// Role определяет уровень доступа пользователя
type Role string

const (
	// RoleUser роль по умолчанию для всех зарегистрированных пользователей
	RoleUser Role = "user"
	// RoleAdmin роль администратора платформы
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время создания
	UpdatedAt    time.Time `json:"updated_at"` // время последнего обновления
	ID           string    `json:"id"`         // UUID пользователя
	Username     string    `json:"username"`   // уникальный username
	Email        string    `json:"email"`      // уникальный email, используется для входа
	PasswordHash string    `json:"-"`          // bcrypt хеш пароля, наружу не отдается
	Name         string    `json:"name"`       // отображаемое имя (опционально)
	Role         Role      `json:"role"`       // user или admin
	Credit       int       `json:"credit"`     // счетчик репутации, меняется контентной подсистемой
}

// Identity returns the part of the user that is safe to put into tokens.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

// Identity is the authenticated identity yielded by the authorization gate.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsZero reports whether no identity is present.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// RefreshToken представляет запись в реестре refresh токенов
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
	ID        string    `json:"id"`         // UUID записи
	UserID    string    `json:"user_id"`    // ID владельца
	Token     string    `json:"token"`      // значение токена (подписанная строка)
}

// Expired reports whether the entry has passed its stored expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
