package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func TestRedact_StripsSensitiveFieldsForNonPrivileged(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"source_ip":         "10.0.0.1",
		"threat_indicators": []string{"x"},
		"confidence_score":  0.9,
		"domain":            "evil.example.com",
	})
	ev := model.Event{Category: model.CategorySecurity, Data: data}

	got := redact(ev, model.Session{})

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(got.Data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"source_ip", "threat_indicators", "confidence_score"} {
		if _, ok := fields[key]; ok {
			t.Errorf("expected %q to be stripped", key)
		}
	}
	if _, ok := fields["domain"]; !ok {
		t.Errorf("expected domain to survive redaction")
	}
}

func TestRedact_PassesThroughForPrivilegedSession(t *testing.T) {
	data, _ := json.Marshal(map[string]any{"source_ip": "10.0.0.1"})
	ev := model.Event{Category: model.CategorySecurity, Data: data}

	got := redact(ev, model.Session{Permissions: []model.Permission{model.PermViewSensitive}})

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(got.Data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["source_ip"]; !ok {
		t.Errorf("expected source_ip to survive for privileged session")
	}
}

func TestRedact_NonSecurityEventsUntouched(t *testing.T) {
	data, _ := json.Marshal(map[string]any{"source_ip": "10.0.0.1"})
	ev := model.Event{Category: model.CategoryDNS, Data: data}

	got := redact(ev, model.Session{})
	if string(got.Data) != string(data) {
		t.Errorf("expected non-security event untouched")
	}
}
