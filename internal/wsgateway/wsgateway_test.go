package wsgateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func TestSessionFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("X-User-ID", "bob")
	r.Header.Set("X-Permissions", "manage_feeds, admin")

	session := sessionFromRequest(r)

	if session.UserID != "bob" {
		t.Errorf("UserID = %q", session.UserID)
	}
	if !session.Has(model.PermManageFeeds) {
		t.Errorf("expected manage_feeds permission, got %v", session.Permissions)
	}
}

func TestToEventFilter_EmptyMessageIsOpen(t *testing.T) {
	filter := toEventFilter(inboundMessage{Type: "subscribe"})
	if len(filter.EventTypes) != 0 || len(filter.Categories) != 0 {
		t.Errorf("expected open filter, got %+v", filter)
	}
	if filter.MinSeverity != model.SeverityDebug {
		t.Errorf("expected default severity debug, got %v", filter.MinSeverity)
	}
}

func TestToEventFilter_TakesLowestSeverity(t *testing.T) {
	filter := toEventFilter(inboundMessage{Severities: []string{"critical", "warning", "error"}})
	if filter.MinSeverity != model.SeverityWarning {
		t.Errorf("MinSeverity = %v, want warning", filter.MinSeverity)
	}
}

func TestToEventFilter_MapsTypesAndCategories(t *testing.T) {
	filter := toEventFilter(inboundMessage{
		EventTypes: []string{"forwarder.down"},
		Categories: []string{"security"},
	})
	if len(filter.EventTypes) != 1 || filter.EventTypes[0] != model.EventType("forwarder.down") {
		t.Errorf("EventTypes = %v", filter.EventTypes)
	}
	if len(filter.Categories) != 1 || filter.Categories[0] != model.Category("security") {
		t.Errorf("Categories = %v", filter.Categories)
	}
}
