// Package httpapi is the external HTTP collaborator binding of spec §6:
// thin go-chi handlers over the six function contracts the core exposes
// (`submit_transaction`, `emit_event`, `get_health_summary`,
// `bulk_import_rpz`, `test_forwarder`; `subscribe` is served over
// internal/wsgateway instead, since a subscription is inherently a
// long-lived connection). Grounded on the teacher's internal/httpserver
// request shape (Decode/Validate/Respond) and chi routing, with the
// tenant/OIDC resolution the teacher's handlers relied on replaced by
// sessionFromRequest, since spec §1 places authentication primitives out
// of scope and only the session/permission contract is referenced.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dnscp/dnscp/internal/apperrors"
	"github.com/dnscp/dnscp/internal/feed"
	"github.com/dnscp/dnscp/internal/health"
	"github.com/dnscp/dnscp/internal/httpserver"
	"github.com/dnscp/dnscp/internal/model"
	"github.com/dnscp/dnscp/internal/projection"
	"github.com/dnscp/dnscp/internal/store"
)

// EventPublisher is the subset of the Event Bus emit_event needs.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// Handler holds the core components the HTTP binding dispatches to.
type Handler struct {
	engine  *projection.Engine
	health  *health.Tracker
	feed    *feed.Pipeline
	events  EventPublisher
	store   *store.Store
	logger  *slog.Logger
}

// New creates an httpapi Handler.
func New(engine *projection.Engine, tracker *health.Tracker, pipeline *feed.Pipeline, events EventPublisher, s *store.Store, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, health: tracker, feed: pipeline, events: events, store: s, logger: logger}
}

// Routes mounts the function contracts onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/transactions", h.submitTransaction)
	r.Post("/events", h.emitEvent)
	r.Get("/health/summary", h.getHealthSummary)
	r.Post("/rpz/bulk-import", h.bulkImportRPZ)
	r.Post("/forwarders/{id}/test", h.testForwarder)
}

// sessionFromRequest builds a model.Session from the trusted upstream
// headers an authenticating proxy is expected to set (spec §1: auth
// primitives are out of scope, only the session/permission contract is
// consumed here).
func sessionFromRequest(r *http.Request) model.Session {
	userID := r.Header.Get("X-User-ID")
	var perms []model.Permission
	if raw := r.Header.Get("X-Permissions"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				perms = append(perms, model.Permission(p))
			}
		}
	}
	return model.Session{UserID: userID, Permissions: perms}
}

func requirePermission(w http.ResponseWriter, session model.Session, perm model.Permission) bool {
	if session.Has(perm) {
		return true
	}
	httpserver.RespondError(w, http.StatusForbidden, "permission_denied", "missing required permission "+string(perm))
	return false
}

// writeAppError maps the apperrors taxonomy to an HTTP status and body. When
// err carries a Field/Suggestion (validation and conflict errors always do,
// per spec §7's "{field, reason, suggestion}" triple), it's surfaced as
// structured response fields rather than folded into the message string, so
// a client can act on it without parsing prose.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	status := apperrors.HTTPStatus(appErr.Kind)
	if appErr.Field != "" || appErr.Suggestion != "" {
		httpserver.RespondFieldError(w, status, string(appErr.Kind), err.Error(), appErr.Field, appErr.Suggestion)
		return
	}
	httpserver.RespondError(w, status, string(appErr.Kind), err.Error())
}

func parsePathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
