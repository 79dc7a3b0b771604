package handlers

import (
	"net/http"
	"time"

	"github.com/everwear/api/internal/services"
)

// HealthHandlers exposes the liveness and readiness probe endpoints.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs probe handlers backed by the system service.
// A nil service still reports liveness so the router can come up before
// dependencies are wired.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, healthPayload{Status: "ok", CheckedAt: formatTime(time.Now())})
		return
	}
	status := h.system.Healthz(r.Context())
	writeJSONResponse(w, http.StatusOK, buildHealthPayload(status))
}

// Readyz reports readiness by probing backend dependencies.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthPayload{Status: "unavailable"})
		return
	}
	status, err := h.system.Readyz(r.Context())
	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, buildHealthPayload(status))
}

type healthPayload struct {
	Status      string `json:"status"`
	Environment string `json:"environment,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CheckedAt   string `json:"checked_at,omitempty"`
}

func buildHealthPayload(status services.HealthStatus) healthPayload {
	return healthPayload{
		Status:      status.Status,
		Environment: status.Environment,
		StartedAt:   formatTime(status.StartedAt),
		CheckedAt:   formatTime(status.CheckedAt),
	}
}
