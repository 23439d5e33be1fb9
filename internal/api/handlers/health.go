package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"playground/internal/api/middleware"
	"playground/internal/engine/nimbus"
	"playground/internal/pkg/errors"
)

// HealthChecker reports whether the backend answers.
type HealthChecker interface {
	Health(ctx context.Context) (*nimbus.Response, error)
}

type HealthHandler struct {
	backend  HealthChecker
	sessions func() int
	timeout  time.Duration
}

func NewHealthHandler(backend HealthChecker, sessions func() int) *HealthHandler {
	return &HealthHandler{backend: backend, sessions: sessions, timeout: 3 * time.Second}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.backend.Health(ctx); err != nil {
		log.Warn().Err(err).Str("request_id", middleware.RequestIDFrom(r.Context())).Msg("backend health check failed")
		checks["backend"] = "unhealthy: " + err.Error()
	} else {
		checks["backend"] = "healthy"
	}
	if h.sessions != nil {
		checks["sessions"] = strconv.Itoa(h.sessions())
	}

	status := "healthy"
	for _, check := range checks {
		if len(check) >= 9 && check[:9] == "unhealthy" {
			status = "degraded"
			break
		}
	}

	response := struct {
		Status    string            `json:"status"`
		Code      string            `json:"code,omitempty"`
		Timestamp int64             `json:"timestamp"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
		response.Code = errors.ErrCodeUpstream
	}

	errors.WriteJSON(w, statusCode, response)
}
