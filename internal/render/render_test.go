package render

import (
	"bytes"
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func sampleZone() (model.Zone, []model.Record) {
	z := model.Zone{
		Name: "internal.local", Type: model.ZoneMaster, Active: true,
		Serial: 2024010101, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300,
		Email: "admin.internal.local",
	}
	priority := uint16(10)
	records := []model.Record{
		{Name: "www", Type: model.RRTypeA, Value: "192.168.1.10", TTL: 3600, Active: true},
		{Name: "@", Type: model.RRTypeMX, Value: "mail.internal.local.", TTL: 3600, Active: true, Priority: &priority},
	}
	return z, records
}

func TestZoneFile_Deterministic(t *testing.T) {
	z, records := sampleZone()
	a := ZoneFile(z, records)
	b := ZoneFile(z, records)
	if !bytes.Equal(a, b) {
		t.Fatal("ZoneFile is not deterministic across identical inputs")
	}
}

func TestZoneFile_SortedByNameThenType(t *testing.T) {
	z, records := sampleZone()
	out := string(ZoneFile(z, records))
	mxIdx := indexOf(out, "@\t3600\tIN\tMX")
	wwwIdx := indexOf(out, "www\t3600\tIN\tA")
	if mxIdx == -1 || wwwIdx == -1 {
		t.Fatalf("expected both records rendered, got:\n%s", out)
	}
	if mxIdx > wwwIdx {
		t.Errorf("expected @ (MX) to sort before www (A), got order reversed")
	}
}

func TestZoneFile_InactiveRecordsExcluded(t *testing.T) {
	z, records := sampleZone()
	records[0].Active = false
	out := string(ZoneFile(z, records))
	if indexOf(out, "192.168.1.10") != -1 {
		t.Error("inactive record should not be rendered")
	}
}

func TestRPZFile_TargetsByAction(t *testing.T) {
	rules := []model.RPZRule{
		{Domain: "bad.example.com", Action: model.RPZBlock, Active: true},
		{Domain: "ok.example.com", Action: model.RPZPassthru, Active: true},
		{Domain: "redirect.example.com", Action: model.RPZRedirect, RedirectTo: "walled-garden.example.com", Active: true},
	}
	out := string(RPZFile("threat", rules, 2026080100))

	if indexOf(out, "bad.example.com\tIN\tCNAME\t.") == -1 {
		t.Error("block rule should target \".\"")
	}
	if indexOf(out, "ok.example.com\tIN\tCNAME\trpz-passthru.") == -1 {
		t.Error("passthru rule should target \"rpz-passthru.\"")
	}
	if indexOf(out, "redirect.example.com\tIN\tCNAME\twalled-garden.example.com.") == -1 {
		t.Error("redirect rule should target its redirect_target")
	}
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
