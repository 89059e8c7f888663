package projection

import (
	"testing"

	"github.com/dnscp/dnscp/internal/audit"
	"github.com/dnscp/dnscp/internal/model"
)

func validZone(name string) model.Zone {
	return model.Zone{
		Name: name, Type: model.ZoneMaster,
		Refresh: 3600, Retry: 600, Expire: 604800, Minimum: 300,
		Email: "admin.example.com.",
	}
}

func validRecord(zoneName string) model.Record {
	return model.Record{Name: "www", Type: model.RRTypeA, Value: "203.0.113.10", TTL: 300}
}

func TestValidate_AcceptsWellFormedTransaction(t *testing.T) {
	e := &Engine{}
	txn := Transaction{
		Zones:   []ZoneChange{{Op: OpCreate, Zone: validZone("example.com")}},
		Records: []RecordChange{{Op: OpCreate, ZoneName: "example.com", Record: validRecord("example.com")}},
	}
	if errs := e.validate(txn); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %+v", errs)
	}
}

func TestValidate_RejectsDuplicateRecordChange(t *testing.T) {
	e := &Engine{}
	rec := validRecord("example.com")
	txn := Transaction{
		Records: []RecordChange{
			{Op: OpCreate, ZoneName: "example.com", Record: rec},
			{Op: OpUpdate, ZoneName: "example.com", Record: rec},
		},
	}
	errs := e.validate(txn)
	if len(errs) == 0 {
		t.Fatal("expected a duplicate-change validation error")
	}
}

func TestValidate_RejectsRecordChangeOnDeletedZone(t *testing.T) {
	e := &Engine{}
	txn := Transaction{
		Zones:   []ZoneChange{{Op: OpDelete, Zone: validZone("example.com")}},
		Records: []RecordChange{{Op: OpCreate, ZoneName: "example.com", Record: validRecord("example.com")}},
	}
	errs := e.validate(txn)
	if len(errs) == 0 {
		t.Fatal("expected a zone-being-deleted validation error")
	}
}

func TestValidate_RejectsMalformedZone(t *testing.T) {
	e := &Engine{}
	txn := Transaction{Zones: []ZoneChange{{Op: OpCreate, Zone: model.Zone{Name: "example.com", Type: model.ZoneMaster}}}}
	if errs := e.validate(txn); len(errs) == 0 {
		t.Fatal("expected validation error for zero-value SOA fields")
	}
}

func TestAffectedFiles_ZoneAndOptionsFiles(t *testing.T) {
	e := &Engine{cfg: Config{BindEtc: "/etc/bind"}}
	txn := Transaction{Zones: []ZoneChange{{Op: OpCreate, Zone: validZone("example.com")}}}
	files := e.affectedFiles(txn)

	want := map[string]bool{
		"/etc/bind/zones/db.example.com":   true,
		"/etc/bind/named.conf.options":     true,
		"/etc/bind/named.conf.local":       true,
	}
	if len(files) != len(want) {
		t.Fatalf("affectedFiles = %v, want %d entries", files, len(want))
	}
	for _, f := range files {
		if !want[f] {
			t.Errorf("unexpected affected file %q", f)
		}
	}
}

type fakeAuditor struct {
	entries []audit.Entry
}

func (f *fakeAuditor) Log(e audit.Entry) { f.entries = append(f.entries, e) }

func TestLogAudit_OneEntryPerChange(t *testing.T) {
	fa := &fakeAuditor{}
	e := &Engine{auditor: fa}
	txn := Transaction{
		Submitter: "alice",
		Zones:     []ZoneChange{{Op: OpCreate, Zone: validZone("example.com")}},
		Records:   []RecordChange{{Op: OpCreate, ZoneName: "example.com", Record: validRecord("example.com")}},
	}
	e.logAudit(txn)

	if len(fa.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(fa.entries))
	}
	for _, entry := range fa.entries {
		if entry.UserID != "alice" {
			t.Errorf("UserID = %q, want alice", entry.UserID)
		}
	}
}

func TestLogAudit_NilAuditorIsNoop(t *testing.T) {
	e := &Engine{}
	e.logAudit(Transaction{Zones: []ZoneChange{{Op: OpCreate, Zone: validZone("example.com")}}})
}
