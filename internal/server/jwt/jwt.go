package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skillcast/skillcast/internal/models"
)

const (
	// DefaultAccessTTL срок жизни access токена
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL срок жизни refresh токена
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrSecretNotConfigured is returned when a signing secret is missing.
	// The issuer never falls back to a built-in secret.
	ErrSecretNotConfigured = errors.New("jwt signing secret is not configured")
	// ErrTokenExpired is returned when the embedded expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("token invalid")
)

// Config содержит секреты и сроки жизни токенов
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AccessClaims payload access токена: id и роль
type AccessClaims struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims payload refresh токена: только id, роль перечитывается при обновлении
type RefreshClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Pair is the result of a successful login.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer mints and verifies access and refresh tokens.
// It has no state beyond its configuration and is safe for concurrent use.
type Issuer struct {
	now           func() time.Time
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewIssuer validates cfg and creates an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrSecretNotConfigured
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &Issuer{
		now:           time.Now,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue mints an access and refresh token pair for identity.
func (i *Issuer) Issue(identity models.Identity) (Pair, error) {
	access, accessExp, err := i.IssueAccess(identity)
	if err != nil {
		return Pair{}, err
	}

	refresh, refreshExp, err := i.IssueRefresh(identity.ID)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess mints an access token carrying id and role.
func (i *Issuer) IssueAccess(identity models.Identity) (string, time.Time, error) {
	if !i.configured() {
		return "", time.Time{}, ErrSecretNotConfigured
	}

	now := i.clock()
	expiresAt := now.Add(i.accessTTL)

	claims := AccessClaims{
		ID:               identity.ID,
		Role:             identity.Role,
		RegisteredClaims: registered(identity.ID, now, expiresAt),
	}

	token, err := sign(claims, i.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return token, expiresAt, nil
}

// IssueRefresh mints a refresh token carrying only the user id.
func (i *Issuer) IssueRefresh(userID string) (string, time.Time, error) {
	if !i.configured() {
		return "", time.Time{}, ErrSecretNotConfigured
	}

	now := i.clock()
	expiresAt := now.Add(i.refreshTTL)

	claims := RefreshClaims{
		ID:               userID,
		RegisteredClaims: registered(userID, now, expiresAt),
	}

	token, err := sign(claims, i.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return token, expiresAt, nil
}

// VerifyAccess checks the signature and expiry of an access token.
func (i *Issuer) VerifyAccess(token string) (*AccessClaims, error) {
	if !i.configured() {
		return nil, ErrSecretNotConfigured
	}

	claims := &AccessClaims{}
	if err := i.parse(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// VerifyRefresh checks the signature and expiry of a refresh token.
func (i *Issuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	if !i.configured() {
		return nil, ErrSecretNotConfigured
	}

	claims := &RefreshClaims{}
	if err := i.parse(token, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (i *Issuer) configured() bool {
	return i != nil && len(i.accessSecret) > 0 && len(i.refreshSecret) > 0
}

func (i *Issuer) clock() time.Time {
	if i.now == nil {
		return time.Now()
	}
	return i.now()
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		// Принимаем только HMAC, иначе возможна подмена алгоритма
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithTimeFunc(i.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}

	return nil
}

func registered(subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
