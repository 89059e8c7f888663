package dnsvalidate

import (
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func u16(n uint16) *uint16 { return &n }

func TestValidateRecord_CNAMEAtApexRejected(t *testing.T) {
	r := model.Record{Name: "@", Type: model.RRTypeCNAME, Value: "www.example.com.", TTL: 3600}
	if err := ValidateRecord(r); err == nil {
		t.Fatal("CNAME at apex should be rejected")
	}
}

func TestValidateRecord_A(t *testing.T) {
	r := model.Record{Name: "www", Type: model.RRTypeA, Value: "192.168.1.10", TTL: 3600}
	if err := ValidateRecord(r); err != nil {
		t.Errorf("valid A record rejected: %v", err)
	}
}

func TestValidateRecord_MXRequiresPriority(t *testing.T) {
	r := model.Record{Name: "@", Type: model.RRTypeMX, Value: "mail.example.com.", TTL: 3600}
	if err := ValidateRecord(r); err == nil {
		t.Fatal("MX record without priority should be rejected")
	}
	r.Priority = u16(10)
	if err := ValidateRecord(r); err != nil {
		t.Errorf("valid MX record rejected: %v", err)
	}
}

func TestValidateRecord_SRV(t *testing.T) {
	r := model.Record{
		Name:  "_sip._tcp",
		Type:  model.RRTypeSRV,
		Value: "10 60 5060 sipserver.example.com.",
		TTL:   3600,
	}
	if err := ValidateRecord(r); err != nil {
		t.Errorf("valid SRV record rejected: %v", err)
	}

	bad := r
	bad.Value = "not enough fields"
	if err := ValidateRecord(bad); err == nil {
		t.Fatal("malformed SRV value should be rejected")
	}
}

func TestValidateTTLBoundary(t *testing.T) {
	if err := ValidateTTL(1); err != nil {
		t.Errorf("TTL=1 should be accepted, got %v", err)
	}
	if err := ValidateTTL(1<<31 - 1); err != nil {
		t.Errorf("TTL=2^31-1 should be accepted, got %v", err)
	}
	if err := ValidateTTL(0); err == nil {
		t.Error("TTL=0 should be rejected")
	}
	if err := ValidateTTL(1 << 31); err == nil {
		t.Error("TTL=2^31 should be rejected")
	}
}

func TestValidateTXT_SPF(t *testing.T) {
	if err := validateTXT("v=spf1 include:_spf.example.com ~all"); err != nil {
		t.Errorf("valid SPF record rejected: %v", err)
	}
	if err := validateTXT("v=spf1 include:_spf.example.com"); err == nil {
		t.Error("SPF record without terminal mechanism should be rejected")
	}
}

func TestValidateRPZRule_RedirectRequiresTarget(t *testing.T) {
	r := model.RPZRule{RPZZone: "threat", Domain: "bad.example.com", Action: model.RPZRedirect}
	if err := ValidateRPZRule(r); err == nil {
		t.Fatal("redirect without target should be rejected")
	}
	r.RedirectTo = "walled-garden.example.com"
	if err := ValidateRPZRule(r); err != nil {
		t.Errorf("valid redirect rule rejected: %v", err)
	}
}

func TestValidateRPZRule_Wildcard(t *testing.T) {
	r := model.RPZRule{RPZZone: "threat", Domain: "*.bad.example.com", Action: model.RPZBlock}
	if err := ValidateRPZRule(r); err != nil {
		t.Errorf("valid wildcard rule rejected: %v", err)
	}
}
