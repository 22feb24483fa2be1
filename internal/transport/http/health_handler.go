package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"waterscope/internal/services"
)

// HealthServiceInterface defines the health reporting operations.
type HealthServiceInterface interface {
	Check(ctx context.Context) services.HealthStatus
	Version() services.VersionInfo
}

// HealthHandler serves liveness and build information endpoints.
type HealthHandler struct {
	health HealthServiceInterface
	logger *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(health HealthServiceInterface, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		health: health,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// Routes returns the health routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetHealth)
	r.Get("/live", h.GetLive)
	r.Get("/ready", h.GetHealth)
	r.Get("/version", h.GetVersion)
	return r
}

// GetLive is the liveness probe: the process is up.
func (h *HealthHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}

// GetHealth reports service health. A degraded status still responds
// with 200; orchestration reads the status field.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.Check(r.Context()))
}

// GetVersion reports build information.
func (h *HealthHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.Version())
}
