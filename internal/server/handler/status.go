package handler

import (
	"net/http"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// StatusFunc reports the live service status.
type StatusFunc func() domain.Status

// StatusHandler serves the backend status for the dashboard.
type StatusHandler struct {
	status StatusFunc
}

// NewStatusHandler creates a StatusHandler backed by fn.
func NewStatusHandler(fn StatusFunc) *StatusHandler {
	return &StatusHandler{status: fn}
}

// GetStatus responds with the current mode, symbol and activity counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
