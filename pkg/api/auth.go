package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"`       // уникальный username
	Email    string `json:"email"`          // уникальный email, используется для входа
	Password string `json:"password"`       // пароль в открытом виде, сервер хранит только bcrypt хеш
	Name     string `json:"name,omitempty"` // отображаемое имя (опционально)
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInfo is the public part of a user returned on login.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Credit   int    `json:"credit"`
}

// LoginResponse представляет ответ с токенами доступа
type LoginResponse struct {
	AccessToken  string   `json:"accessToken"`  // JWT access token, 15 минут
	RefreshToken string   `json:"refreshToken"` // JWT refresh token, 7 дней, записан в реестр
	User         UserInfo `json:"user"`
}

// TokenRequest carries a refresh token in the body (refresh and logout).
type TokenRequest struct {
	Token string `json:"token"`
}

// RefreshResponse содержит новый access token
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// ChangePasswordRequest представляет запрос на смену пароля
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// MessageResponse представляет ответ с текстовым сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// IdentityResponse returns the identity attached by the authorization gate.
type IdentityResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`         // RFC 3339
	Version   string `json:"version,omitempty"` // версия сборки
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"` // описание ошибки
}
