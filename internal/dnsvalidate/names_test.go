package dnsvalidate

import (
	"strings"
	"testing"

	"github.com/dnscp/dnscp/internal/apperrors"
)

func TestValidateName_LabelLengthBoundary(t *testing.T) {
	label63 := strings.Repeat("a", 63)
	label64 := strings.Repeat("a", 64)

	if err := ValidateName(label63 + ".example.com"); err != nil {
		t.Errorf("63-char label should be accepted, got %v", err)
	}
	if err := ValidateName(label64 + ".example.com"); err == nil {
		t.Errorf("64-char label should be rejected")
	} else if !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("expected Validation kind, got %v", err)
	}
}

func TestValidateName_TotalLengthBoundary(t *testing.T) {
	// Build a name of exactly 253 total characters using 63-char labels.
	label := strings.Repeat("a", 63)
	name253 := label + "." + label + "." + label + "." + strings.Repeat("b", 61) // 63*3+3+61 = 253
	if len(name253) != 253 {
		t.Fatalf("test setup: name253 length = %d, want 253", len(name253))
	}
	if err := ValidateName(name253); err != nil {
		t.Errorf("253-char name should be accepted, got %v", err)
	}

	name254 := name253 + "c"
	if err := ValidateName(name254); err == nil {
		t.Errorf("254-char name should be rejected")
	}
}

func TestValidateName_Wildcard(t *testing.T) {
	if err := ValidateName("*.example.com"); err != nil {
		t.Errorf("wildcard name should be accepted, got %v", err)
	}
	if err := ValidateName("*."); err == nil {
		t.Errorf("bare wildcard should be rejected")
	}
}

func TestValidateName_Apex(t *testing.T) {
	if err := ValidateName("@"); err != nil {
		t.Errorf("apex name should be accepted, got %v", err)
	}
}

func TestValidateName_ServiceLabel(t *testing.T) {
	if err := ValidateName("_sip._tcp.example.com"); err != nil {
		t.Errorf("service label name should be accepted, got %v", err)
	}
}

func TestValidateSRVName(t *testing.T) {
	if err := ValidateSRVName("_sip._tcp.example.com"); err != nil {
		t.Errorf("valid SRV name rejected: %v", err)
	}
	if err := ValidateSRVName("www.example.com"); err == nil {
		t.Errorf("non-SRV-shaped name should be rejected")
	}
}

func TestDNSDottedEmail(t *testing.T) {
	if err := DNSDottedEmail("admin.example.com"); err != nil {
		t.Errorf("valid DNS-dotted email rejected: %v", err)
	}
	if err := DNSDottedEmail("admin@example.com"); err == nil {
		t.Errorf("@-form email should be rejected")
	}
}
