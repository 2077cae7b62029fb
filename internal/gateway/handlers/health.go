package handlers

import (
	"net/http"
	"sync"
	"time"
)

var (
	startTime time.Time
	startOnce sync.Once
)

// InitStartTime initializes the server start time.
// Should be called when the server starts.
func InitStartTime() {
	startOnce.Do(func() {
		startTime = time.Now()
	})
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
	Bridge  any    `json:"bridge,omitempty"`
	Clients int    `json:"activity_clients"`
}

// HealthSource supplies the dynamic parts of the health response.
type HealthSource struct {
	// Bridge returns a bridge snapshot; nil when the bridge is not running.
	Bridge func() any
	// Clients returns the number of connected activity stream clients.
	Clients func() int
}

// HealthHandler returns a health check handler.
func HealthHandler(version string, src HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(0)
		if !startTime.IsZero() {
			uptime = int64(time.Since(startTime).Seconds())
		}

		resp := HealthResponse{
			Status:  "ok",
			Version: version,
			Uptime:  uptime,
		}
		if src.Bridge != nil {
			resp.Bridge = src.Bridge()
		} else {
			resp.Status = "degraded"
		}
		if src.Clients != nil {
			resp.Clients = src.Clients()
		}

		SendJSON(w, http.StatusOK, resp)
	}
}
