package httpapi

import (
	"net/http"

	"github.com/dnscp/dnscp/internal/httpserver"
)

// getHealthSummary serves get_health_summary() (spec §6).
func (h *Handler) getHealthSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.health.Summary(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"forwarders": summary})
}
