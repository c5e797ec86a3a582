package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/auth"
	"github.com/skillcast/skillcast/pkg/api"
)

// SessionService is the session orchestrator used by AuthHandler.
// Implemented by *auth.Service.
type SessionService interface {
	Register(ctx context.Context, in auth.NewUser) (*models.User, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service SessionService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, service SessionService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

// Register обрабатывает POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		sendError(h.logger, w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(r.Context(), auth.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		sendAuthError(h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, api.RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	}, http.StatusCreated)
}

// Login обрабатывает POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		sendError(h.logger, w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		sendAuthError(h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, api.LoginResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User: api.UserInfo{
			ID:       session.User.ID,
			Username: session.User.Username,
			Role:     string(session.User.Role),
			Credit:   session.User.Credit,
		},
	}, http.StatusOK)
}

// Refresh обрабатывает POST /api/auth/refresh.
// Refresh token передается в теле запроса.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.TokenRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		sendError(h.logger, w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	access, err := h.service.Refresh(r.Context(), req.Token)
	if err != nil {
		sendAuthError(h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, api.RefreshResponse{AccessToken: access}, http.StatusOK)
}

// Logout обрабатывает POST /api/auth/logout (за gate).
// Отзывает переданный refresh token; повторный logout не ошибка.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var req api.TokenRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		sendError(h.logger, w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	if err := h.service.Logout(r.Context(), req.Token); err != nil {
		sendAuthError(h.logger, w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged out", slog.String("user_id", identity.ID))

	sendJSON(h.logger, w, api.MessageResponse{Message: "Logged out successfully"}, http.StatusOK)
}

// ChangePassword обрабатывает POST /api/auth/change-password (за gate)
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var req api.ChangePasswordRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		sendError(h.logger, w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	if err := h.service.ChangePassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		sendAuthError(h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, api.MessageResponse{Message: "Password updated successfully"}, http.StatusOK)
}

// Me обрабатывает GET /api/auth/me: возвращает identity из access токена
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	sendJSON(h.logger, w, api.IdentityResponse{
		ID:   identity.ID,
		Role: string(identity.Role),
	}, http.StatusOK)
}

// AdminPing обрабатывает GET /api/admin/ping (gate + проверка роли admin)
func (h *AuthHandler) AdminPing(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	sendJSON(h.logger, w, api.MessageResponse{Message: "Admin access granted"}, http.StatusOK)
}
