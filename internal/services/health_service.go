package services

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Version information, injected at build time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// VersionInfo is the version endpoint response body.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// HealthService reports service liveness and build information.
type HealthService struct {
	startedAt  time.Time
	uploadsDir string
	logger     *slog.Logger
}

// NewHealthService creates a health service.
func NewHealthService(uploadsDir string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		startedAt:  time.Now(),
		uploadsDir: uploadsDir,
		logger:     logger.With(slog.String("component", "health_service")),
	}
}

// Check runs the health checks and reports overall status.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	checks := map[string]string{
		"storage": "ok",
	}
	status := "healthy"

	if _, err := os.Stat(s.uploadsDir); err != nil {
		checks["storage"] = err.Error()
		status = "degraded"
		s.logger.WarnContext(ctx, "storage check failed",
			slog.String("uploads_dir", s.uploadsDir),
			slog.String("error", err.Error()))
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Checks:    checks,
	}
}

// Version returns build information.
func (s *HealthService) Version() VersionInfo {
	return VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
