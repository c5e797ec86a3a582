package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/jwt"
)

var (
	// ErrNoCredential means the request carries no bearer token (401).
	ErrNoCredential = errors.New("no credential")
	// ErrInvalidCredential means the bearer token failed verification (403).
	ErrInvalidCredential = errors.New("invalid credential")
)

// Сообщения об ошибках, которые видит клиент
const (
	msgNoToken      = "Access Denied: No token provided"
	msgInvalidToken = "Invalid or expired token"
	msgAdminsOnly   = "Access Denied: Admins only"
	msgRoleRequired = "Access Denied: insufficient role"
)

// AccessVerifier checks an access token and returns its claims.
// Implemented by *jwt.Issuer.
type AccessVerifier interface {
	VerifyAccess(token string) (*jwt.AccessClaims, error)
}

// AuthenticatedHandler is a handler that receives the caller identity as an argument.
type AuthenticatedHandler func(w http.ResponseWriter, r *http.Request, identity models.Identity)

// Gate authenticates requests by their bearer access token.
// It never consults the refresh ledger: an access token stays usable until
// its own expiry even after the session is revoked.
type Gate struct {
	logger   *slog.Logger
	verifier AccessVerifier
}

// NewGate creates the authorization gate
func NewGate(logger *slog.Logger, verifier AccessVerifier) *Gate {
	return &Gate{logger: logger, verifier: verifier}
}

// Authenticate extracts and verifies the bearer token of r.
// Returns ErrNoCredential or ErrInvalidCredential on failure.
func (g *Gate) Authenticate(r *http.Request) (models.Identity, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return models.Identity{}, ErrNoCredential
	}

	if g.verifier == nil {
		return models.Identity{}, ErrInvalidCredential
	}

	claims, err := g.verifier.VerifyAccess(token)
	if err != nil {
		return models.Identity{}, errors.Join(ErrInvalidCredential, err)
	}

	return models.Identity{ID: claims.ID, Role: claims.Role}, nil
}

// Require wraps next so that it runs only for authenticated requests.
func (g *Gate) Require(next AuthenticatedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authenticate(r)
		if err != nil {
			if errors.Is(err, ErrNoCredential) {
				g.logger.WarnContext(r.Context(), "request without credential",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, msgNoToken)
				return
			}

			g.logger.WarnContext(r.Context(), "invalid access token",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
			writeError(w, http.StatusForbidden, msgInvalidToken)
			return
		}

		g.logger.DebugContext(r.Context(), "request authenticated",
			slog.String("user_id", identity.ID),
			slog.String("role", string(identity.Role)))

		next(w, r, identity)
	})
}

// RequireRole composes after the gate and allows only identities with role.
// A missing identity never passes.
func RequireRole(role models.Role, next AuthenticatedHandler) AuthenticatedHandler {
	return func(w http.ResponseWriter, r *http.Request, identity models.Identity) {
		if identity.IsZero() || identity.Role != role {
			msg := msgRoleRequired
			if role == models.RoleAdmin {
				msg = msgAdminsOnly
			}
			writeError(w, http.StatusForbidden, msg)
			return
		}

		next(w, r, identity)
	}
}

// bearerToken разбирает заголовок формата "Bearer <token>"
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
