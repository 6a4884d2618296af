package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/soundbites/quizapi/pkg/http"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker pings a backing store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// LivenessResponse is the body of GET /health/live
type LivenessResponse struct {
	Alive bool `json:"alive"`
}

// ReadinessResponse is the body of GET /health/ready
type ReadinessResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// HealthHandler serves the health endpoints. A nil checker means the
// memory store is in use and there is no database to ping.
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports the process and database status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Database: "memory"})
		return
	}

	if err := h.ping(r.Context()); err != nil {
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Database: "down"})
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Database: "up"})
}

// Live answers as long as the process serves requests. It never touches
// the database, so a database outage does not get the process restarted.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, LivenessResponse{Alive: true})
}

// Ready reports whether the instance can take traffic, which requires the
// database to answer a ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.ping(r.Context()); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Ready: false, Reason: "database unavailable"})
			return
		}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ReadinessResponse{Ready: true})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return h.db.HealthCheck(ctx)
}
