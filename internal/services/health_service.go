package services

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"pitpipe/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	startTime time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	checks []namedCheck
}

// CheckFunc reports whether a dependency is usable
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual dependency health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// AddCheck registers a readiness check under name
func (hs *HealthService) AddCheck(name string, check CheckFunc) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checks = append(hs.checks, namedCheck{name: name, check: check})
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck runs every registered check
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	hs.mu.RLock()
	checks := append([]namedCheck(nil), hs.checks...)
	hs.mu.RUnlock()

	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth, len(checks)),
	}
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			status.Services[c.name] = ServiceHealth{Status: "not_ready", Message: err.Error()}
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "Readiness check failed",
				slog.String("check", c.name),
				slog.String("error", err.Error()))
			continue
		}
		status.Services[c.name] = ServiceHealth{Status: "ready"}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]any{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}
