package auth

import "errors"

// Kind classifies an auth failure. Handlers map it to an HTTP status.
type Kind int

const (
	// KindInternal неожиданная ошибка хранилища
	KindInternal Kind = iota
	// KindValidation отсутствующий или некорректный ввод
	KindValidation
	// KindAuthentication неверные учетные данные или отсутствующий токен
	KindAuthentication
	// KindAuthorization недействительный, истекший или отозванный токен
	KindAuthorization
	// KindNotFound пользователь не найден
	KindNotFound
	// KindConfiguration не заданы секреты подписи
	KindConfiguration
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Error is returned by every operation of this package.
// Message is safe to show to the caller; Err holds the cause for operators.
type Error struct {
	Err     error
	Op      string
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind and public message, so a wrapped
// failure compares equal to its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Sentinels. Returned errors carry Op and cause but match these with errors.Is.
var (
	ErrInvalidCredentials       = &Error{Kind: KindAuthentication, Message: "Invalid Credentials"}
	ErrRegistrationFailed       = &Error{Kind: KindInternal, Message: "Registration failed"}
	ErrRefreshTokenRequired     = &Error{Kind: KindAuthentication, Message: "Refresh token required"}
	ErrInvalidRefreshToken      = &Error{Kind: KindAuthorization, Message: "Invalid refresh token"}
	ErrCurrentPasswordIncorrect = &Error{Kind: KindAuthentication, Message: "Current password is incorrect"}
	ErrUserNotFound             = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrSecretsNotConfigured     = &Error{Kind: KindConfiguration, Message: "Server auth secrets missing"}
	ErrLogoutFailed             = &Error{Kind: KindInternal, Message: "Logout failed"}
	ErrInternal                 = &Error{Kind: KindInternal, Message: "Internal server error"}
)

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}

func wrap(op string, sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Op: op, Message: sentinel.Message, Err: cause}
}

func invalid(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}
