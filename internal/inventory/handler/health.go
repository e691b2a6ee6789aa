package handler

import (
	"context"
	"net/http"

	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
)

// HealthCheck reports one dependency. A "status" of "down" marks the
// service degraded.
type HealthCheck func(ctx context.Context) map[string]string

// HealthHandler serves /health
type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, checks: checks}
}

// Health reports every dependency and answers 503 when one is down
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"service": h.service,
	}

	status, code := "healthy", http.StatusOK
	for name, check := range h.checks {
		result := check(r.Context())
		if result["status"] == "down" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		body[name] = result
	}
	body["status"] = status

	httputil.JSON(w, code, body)
}
