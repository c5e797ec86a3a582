package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/jwt"
	"github.com/skillcast/skillcast/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

func setupTestIssuer(t *testing.T) *jwt.Issuer {
	t.Helper()

	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	})
	require.NoError(t, err)
	return issuer
}

// identityHandler проверяет, что gate передал ожидаемую identity
func identityHandler(t *testing.T, want models.Identity) AuthenticatedHandler {
	return func(w http.ResponseWriter, r *http.Request, identity models.Identity) {
		assert.Equal(t, want, identity)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

func TestGate_Success(t *testing.T) {
	issuer := setupTestIssuer(t)
	gate := NewGate(setupTestLogger(), issuer)

	identity := models.Identity{ID: "user123", Role: models.RoleUser}
	token, _, err := issuer.IssueAccess(identity)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	gate.Require(identityHandler(t, identity)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestGate_Authenticate(t *testing.T) {
	issuer := setupTestIssuer(t)
	gate := NewGate(setupTestLogger(), issuer)

	valid, _, err := issuer.IssueAccess(models.Identity{ID: "user123", Role: models.RoleAdmin})
	require.NoError(t, err)

	refresh, _, err := issuer.IssueRefresh("user123")
	require.NoError(t, err)

	expired, _, err := issuer.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).
		IssueAccess(models.Identity{ID: "user123", Role: models.RoleUser})
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid", header: "Bearer " + valid},
		{name: "lowercase scheme", header: "bearer " + valid},
		{name: "missing header", header: "", wantErr: ErrNoCredential},
		{name: "scheme only", header: "Bearer", wantErr: ErrNoCredential},
		{name: "empty token", header: "Bearer   ", wantErr: ErrNoCredential},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrNoCredential},
		{name: "garbage token", header: "Bearer garbage", wantErr: ErrInvalidCredential},
		{name: "expired token", header: "Bearer " + expired, wantErr: ErrInvalidCredential},
		{name: "refresh token as access", header: "Bearer " + refresh, wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			identity, err := gate.Authenticate(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, identity.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.Identity{ID: "user123", Role: models.RoleAdmin}, identity)
		})
	}
}

func TestGate_Require_StatusCodes(t *testing.T) {
	issuer := setupTestIssuer(t)
	gate := NewGate(setupTestLogger(), issuer)

	other, err := jwt.NewIssuer(jwt.Config{
		AccessSecret:  []byte("wrong-access"),
		RefreshSecret: []byte("wrong-refresh"),
	})
	require.NoError(t, err)
	forged, _, err := other.IssueAccess(models.Identity{ID: "user123", Role: models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantError: "Access Denied: No token provided"},
		{name: "not bearer", header: "Token abc", wantStatus: http.StatusUnauthorized, wantError: "Access Denied: No token provided"},
		{name: "wrong secret", header: "Bearer " + forged, wantStatus: http.StatusForbidden, wantError: "Invalid or expired token"},
		{name: "malformed", header: "Bearer a.b.c", wantStatus: http.StatusForbidden, wantError: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := gate.Require(func(w http.ResponseWriter, r *http.Request, identity models.Identity) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.False(t, called, "handler should not be called")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantError, decodeError(t, w))
		})
	}
}

func TestGate_NilVerifierFailsClosed(t *testing.T) {
	gate := NewGate(setupTestLogger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer something")

	_, err := gate.Authenticate(req)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestRequireRole(t *testing.T) {
	issuer := setupTestIssuer(t)
	gate := NewGate(setupTestLogger(), issuer)

	ok := func(w http.ResponseWriter, r *http.Request, identity models.Identity) {
		w.WriteHeader(http.StatusOK)
	}
	handler := gate.Require(RequireRole(models.RoleAdmin, ok))

	tests := []struct {
		name       string
		role       models.Role
		wantStatus int
	}{
		{name: "admin allowed", role: models.RoleAdmin, wantStatus: http.StatusOK},
		{name: "user rejected", role: models.RoleUser, wantStatus: http.StatusForbidden},
		{name: "empty role rejected", role: "", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := issuer.IssueAccess(models.Identity{ID: "user123", Role: tt.role})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "Access Denied: Admins only", decodeError(t, w))
			}
		})
	}
}

func TestRequireRole_ZeroIdentity(t *testing.T) {
	called := false
	handler := RequireRole(models.RoleAdmin, func(w http.ResponseWriter, r *http.Request, identity models.Identity) {
		called = true
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/admin", nil), models.Identity{Role: models.RoleAdmin})

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
