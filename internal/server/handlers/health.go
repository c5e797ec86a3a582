package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/skillcast/skillcast/pkg/api"
)

// pingTimeout ограничивает проверку хранилища
const pingTimeout = 2 * time.Second

// Pinger is a store that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	now     func() time.Time
	version string
	stores  []Pinger
}

// NewHealthHandler создает новый handler для health check.
// Каждое из stores проверяется на каждом запросе.
func NewHealthHandler(logger *slog.Logger, version string, stores ...Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		now:     time.Now,
		version: version,
		stores:  stores,
	}
}

// Health обрабатывает GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	resp := api.HealthResponse{
		Status:    "active",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}

	for _, store := range h.stores {
		if err := store.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check failed", slog.Any("error", err))
			resp.Status = "unavailable"
			sendJSON(h.logger, w, resp, http.StatusServiceUnavailable)
			return
		}
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
