package httpapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/dnscp/dnscp/internal/httpserver"
	"github.com/dnscp/dnscp/internal/model"
)

// bulkImportRPZ serves bulk_import_rpz(payload) → ImportResult (spec §6).
// The RPZ zone and format are query parameters; the request body is the
// feed payload itself in one of C7's supported formats.
func (h *Handler) bulkImportRPZ(w http.ResponseWriter, r *http.Request) {
	session := sessionFromRequest(r)
	if !requirePermission(w, session, model.PermManageFeeds) {
		return
	}

	rpzZone := r.URL.Query().Get("rpz_zone")
	format := model.FeedFormat(r.URL.Query().Get("format"))
	if rpzZone == "" || format == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "rpz_zone and format query parameters are required")
		return
	}

	body := http.MaxBytesReader(w, r.Body, 10<<20) // 10 MiB
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "reading request body: "+err.Error())
		return
	}

	outcome, err := h.feed.BulkImport(r.Context(), rpzZone, bytes.NewReader(data), format)
	if err != nil {
		writeAppError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, outcome)
}
