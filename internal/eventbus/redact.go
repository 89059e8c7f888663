package eventbus

import (
	"encoding/json"

	"github.com/dnscp/dnscp/internal/model"
)

// sensitiveFields names the Data keys stripped from a security_alert event
// for subscribers without view_sensitive permission (spec §4.9 "Permission
// filtering").
var sensitiveFields = []string{"source_ip", "threat_indicators", "confidence_score"}

// redact returns a copy of ev with sensitive Data fields removed unless
// session grants admin or view_sensitive (spec §4.9 "non-admin subscribers
// receive a redacted projection").
func redact(ev model.Event, session model.Session) model.Event {
	if session.Has(model.PermViewSensitive) {
		return ev
	}
	if ev.Category != model.CategorySecurity || len(ev.Data) == 0 {
		return ev
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(ev.Data, &fields); err != nil {
		return ev
	}
	changed := false
	for _, key := range sensitiveFields {
		if _, ok := fields[key]; ok {
			delete(fields, key)
			changed = true
		}
	}
	if !changed {
		return ev
	}
	redacted, err := json.Marshal(fields)
	if err != nil {
		return ev
	}
	ev.Data = redacted
	return ev
}
