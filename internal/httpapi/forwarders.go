package httpapi

import (
	"net/http"

	"github.com/dnscp/dnscp/internal/httpserver"
	"github.com/dnscp/dnscp/internal/model"
)

type testForwarderRequest struct {
	Domains []string `json:"domains"`
}

type testForwarderResponse struct {
	Results     []testResultDTO `json:"results"`
	SuccessRate float64         `json:"success_rate"`
}

type testResultDTO struct {
	ServerIP       string `json:"server_ip"`
	Domain         string `json:"domain"`
	Success        bool   `json:"success"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// testForwarder serves test_forwarder(forwarder, domains?) (spec §6),
// probing without persisting any rows.
func (h *Handler) testForwarder(w http.ResponseWriter, r *http.Request) {
	session := sessionFromRequest(r)
	if !requirePermission(w, session, model.PermAdmin) {
		return
	}

	id, err := parsePathInt64(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid forwarder id")
		return
	}

	var req testForwarderRequest
	if r.ContentLength > 0 {
		if !httpserver.DecodeAndValidate(w, r, &req) {
			return
		}
	}

	f, err := h.store.GetForwarder(r.Context(), h.store.Pool(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	results, rate := h.health.TestForwarder(r.Context(), f, req.Domains)

	dtos := make([]testResultDTO, 0, len(results))
	for _, res := range results {
		dtos = append(dtos, testResultDTO{
			ServerIP:       res.ServerIP,
			Domain:         res.Domain,
			Success:        res.Success,
			ResponseTimeMs: res.ResponseTimeMs,
			Error:          res.Error,
		})
	}

	httpserver.Respond(w, http.StatusOK, testForwarderResponse{Results: dtos, SuccessRate: rate})
}
