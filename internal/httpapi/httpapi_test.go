package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func TestSessionFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	r.Header.Set("X-User-ID", "alice")
	r.Header.Set("X-Permissions", "submit_transaction, view_sensitive")

	session := sessionFromRequest(r)

	if session.UserID != "alice" {
		t.Errorf("UserID = %q", session.UserID)
	}
	if !session.Has(model.PermSubmitTx) || !session.Has(model.PermViewSensitive) {
		t.Errorf("expected both permissions parsed, got %v", session.Permissions)
	}
	if session.Has(model.PermAdmin) {
		t.Errorf("did not expect admin permission")
	}
}

func TestSessionFromRequest_NoHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health/summary", nil)
	session := sessionFromRequest(r)
	if session.UserID != "" || len(session.Permissions) != 0 {
		t.Errorf("expected empty session, got %+v", session)
	}
}

func TestRequirePermission_Denies(t *testing.T) {
	w := httptest.NewRecorder()
	ok := requirePermission(w, model.Session{}, model.PermAdmin)
	if ok {
		t.Fatal("expected permission denied")
	}
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequirePermission_AllowsAdmin(t *testing.T) {
	w := httptest.NewRecorder()
	session := model.Session{Permissions: []model.Permission{model.PermAdmin}}
	if !requirePermission(w, session, model.PermManageFeeds) {
		t.Fatal("expected admin to satisfy any permission")
	}
}
