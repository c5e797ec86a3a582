package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skillcast/skillcast/internal/crypto"
	"github.com/skillcast/skillcast/internal/models"
	"github.com/skillcast/skillcast/internal/server/auth"
	"github.com/skillcast/skillcast/internal/server/config"
	"github.com/skillcast/skillcast/internal/server/handlers"
	"github.com/skillcast/skillcast/internal/server/jwt"
	"github.com/skillcast/skillcast/internal/server/middleware"
)

const readHeaderTimeout = 5 * time.Second

// Server is the HTTP server of the auth core.
type Server struct {
	logger     *slog.Logger
	stores     *Stores
	service    *auth.Service
	limiter    *middleware.RateLimiter
	httpServer *http.Server
	cfg        config.Config
}

// New builds the server on already opened stores. The server owns stores
// and closes them in Close.
func New(cfg config.Config, logger *slog.Logger, version string, stores *Stores) (*Server, error) {
	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	hasher, err := crypto.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	ledger := auth.NewLedger(stores.Tokens)
	passwords := auth.NewPasswords(logger, stores.Users, ledger, hasher)
	service := auth.NewService(logger, stores.Users, passwords, issuer, ledger)

	s := &Server{
		logger:  logger,
		stores:  stores,
		service: service,
		limiter: middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.TrustProxy, logger),
		cfg:     cfg,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.routes(issuer, version),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// routes собирает маршруты и общую цепочку middleware
func (s *Server) routes(issuer *jwt.Issuer, version string) http.Handler {
	authHandler := handlers.NewAuthHandler(s.logger, s.service)
	healthHandler := handlers.NewHealthHandler(s.logger, version, s.stores.Pingers...)
	gate := middleware.NewGate(s.logger, issuer)

	mux := http.NewServeMux()

	// Публичные эндпоинты под rate limit
	mux.Handle("POST /api/auth/register", s.limiter.Limit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", s.limiter.Limit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/refresh", s.limiter.Limit(http.HandlerFunc(authHandler.Refresh)))

	// Защищенные эндпоинты
	mux.Handle("POST /api/auth/logout", gate.Require(authHandler.Logout))
	mux.Handle("POST /api/auth/change-password", gate.Require(authHandler.ChangePassword))
	mux.Handle("GET /api/auth/me", gate.Require(authHandler.Me))
	mux.Handle("GET /api/admin/ping", gate.Require(middleware.RequireRole(models.RoleAdmin, authHandler.AdminPing)))

	mux.HandleFunc("GET /api/health", healthHandler.Health)
	mux.HandleFunc("/", handlers.NotFound(s.logger))

	return middleware.Logging(s.logger, "/api/health")(middleware.Recovery(s.logger)(mux))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves HTTP and sweeps the ledger until ctx is cancelled, then shuts
// down gracefully within cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.runSweeper(sweepCtx, s.cfg.LedgerSweepInterval)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// runSweeper периодически удаляет истекшие записи реестра
func (s *Server) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	n, err := s.service.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "ledger sweep removed expired tokens", slog.Int("count", n))
	}
}

// Close stops background work and closes the stores.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.stores.Close()
}
