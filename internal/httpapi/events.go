package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dnscp/dnscp/internal/httpserver"
	"github.com/dnscp/dnscp/internal/model"
)

// emitEventRequest is the wire shape of emit_event (spec §6 "emit_event(event)").
type emitEventRequest struct {
	Type     model.EventType `json:"type" validate:"required"`
	Category model.Category  `json:"category" validate:"required"`
	Severity string          `json:"severity" validate:"required,oneof=debug info warning error critical"`
	Priority model.Priority  `json:"priority" validate:"required,oneof=low normal high critical urgent"`
	Data     any             `json:"data"`
	Persist  bool            `json:"persist"`
}

func (h *Handler) emitEvent(w http.ResponseWriter, r *http.Request) {
	session := sessionFromRequest(r)
	if !requirePermission(w, session, model.PermAdmin) {
		return
	}

	var req emitEventRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	severity, ok := model.ParseSeverity(req.Severity)
	if !ok {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation_error", "unrecognised severity "+req.Severity)
		return
	}

	var data []byte
	if req.Data != nil {
		var err error
		data, err = json.Marshal(req.Data)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid event data: "+err.Error())
			return
		}
	}

	h.events.Publish(r.Context(), model.Event{
		ID:        uuid.New(),
		Type:      req.Type,
		Category:  req.Category,
		Severity:  severity,
		Priority:  req.Priority,
		Source:    "httpapi:" + session.UserID,
		Data:      data,
		CreatedAt: time.Now(),
		Persist:   req.Persist,
	})

	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
