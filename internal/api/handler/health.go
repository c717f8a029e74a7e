package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/adorable-dev/adorable/internal/api/middleware"
	"github.com/adorable-dev/adorable/internal/api/response"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
}

// ServeHTTP handles the health check request. A failed database ping reports
// "degraded" with 503 so load balancers drain the instance.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	data := healthData{Status: "healthy", Version: h.version, Database: databaseStatus{Connected: true}}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		middleware.Logger(r.Context()).Warnw("health check: database ping failed", "error", err)
		data.Status = "degraded"
		data.Database.Connected = false
		status = http.StatusServiceUnavailable
	}

	response.JSON(w, status, data)
}
