package handlers

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"playground/internal/platform/metrics"
)

type MetricsHandler struct {
	registry *metrics.Registry
	sessions func() int
}

func NewMetricsHandler(registry *metrics.Registry, sessions func() int) *MetricsHandler {
	return &MetricsHandler{registry: registry, sessions: sessions}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := h.registry.WriteText(w); err != nil {
		log.Warn().Err(err).Msg("write metrics")
		return
	}
	if h.sessions != nil {
		fmt.Fprintf(w, "# HELP playground_sessions Live playground sessions\n# TYPE playground_sessions gauge\nplayground_sessions %d\n", h.sessions())
	}
}
