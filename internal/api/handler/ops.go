// Package handler provides HTTP handlers for the weather-mcp HTTP transport.
package handler

import (
	"net/http"
	"time"

	"github.com/nwsmcp/weather-mcp/internal/api/models"
	"github.com/nwsmcp/weather-mcp/internal/api/response"
	"github.com/nwsmcp/weather-mcp/internal/provider/resilience"
)

// HealthSource reports upstream provider health. *resilience.Registry
// implements it.
type HealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	tools     []string
	health    HealthSource
}

// NewOpsHandler creates a new OpsHandler. health may be nil, in which case
// no providers are reported.
func NewOpsHandler(version, buildTime string, tools []string, health HealthSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		tools:     tools,
		health:    health,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is not ready while
// an upstream circuit is open, since every tool call would fail fast.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.providers() {
		if p.IsUnhealthy() {
			response.ServiceUnavailable(w, r, "circuit open for provider "+p.Name)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - upstream provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providers()

	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		Tools:     h.tools,
		Providers: make([]models.ProviderStatus, 0, len(providers)),
	}

	for _, p := range providers {
		ps := providerStatus(p)
		status.Status = worst(status.Status, ps.Status)
		status.Providers = append(status.Providers, ps)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providers() []*resilience.ProviderHealth {
	if h.health == nil {
		return nil
	}
	return h.health.GetAllHealth()
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            p.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        p.CircuitState.String(),
		ConsecutiveFailures: p.Counts.ConsecutiveFailures,
		LastSuccessAt:       models.TimestampPtr(p.LastSuccessAt),
		LastFailureAt:       models.TimestampPtr(p.LastFailureAt),
	}

	switch {
	case p.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}

	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}

	return ps
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
