package controllers

import (
	"context"
	"net/http"
	"time"

	"tutor/tutor/services/llm"
	"tutor/tutor/utils/logging"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthReport struct {
	Status    string             `json:"status"`
	Database  ComponentStatus    `json:"database"`
	Cache     ComponentStatus    `json:"cache"`
	Providers []llm.ProviderInfo `json:"providers"`
	Uptime    string             `json:"uptime"`
	Timestamp time.Time          `json:"timestamp"`
}

type HealthController struct {
	db        Pinger
	cache     Pinger
	providers ProviderLister
	started   time.Time
}

// NewHealthController accepts a nil cache when caching is disabled.
func NewHealthController(db Pinger, cache Pinger, providers ProviderLister) *HealthController {
	return &HealthController{db: db, cache: cache, providers: providers, started: time.Now()}
}

// Health reports 503 when the database is unreachable. A failing cache only
// degrades the report.
func (h *HealthController) Health(ctx context.Context) (*HealthReport, int) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	report := &HealthReport{
		Status:    "ok",
		Database:  ComponentStatus{Status: "up"},
		Cache:     ComponentStatus{Status: "disabled"},
		Providers: h.providers.List(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		logging.ErrorLogger.Error("database health check failed", zap.Error(err))
		report.Status = "unavailable"
		report.Database = ComponentStatus{Status: "down", Error: err.Error()}
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		report.Cache = ComponentStatus{Status: "up"}
		if err := h.cache.Ping(ctx); err != nil {
			logging.ErrorLogger.Error("cache health check failed", zap.Error(err))
			report.Cache = ComponentStatus{Status: "down", Error: err.Error()}
			if status == http.StatusOK {
				report.Status = "degraded"
			}
		}
	}
	return report, status
}

func (h *HealthController) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success":true,"message":"pong"}`))
}
