package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the backend status (mode, uptime) for dashboards.
type StatusHandler struct {
	Mode      string
	Version   uint64
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler with the given mode and factory version.
func NewStatusHandler(mode string, version uint64, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Mode: mode, Version: version, StartedAt: startedAt}
}

// GetStatus responds with the current backend mode, factory version, and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"version":        h.Version,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
