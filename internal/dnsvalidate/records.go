package dnsvalidate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/dnscp/dnscp/internal/apperrors"
	"github.com/dnscp/dnscp/internal/model"
)

// ValidateRecord runs the full set of per-type and cross-field checks for a
// single Record (spec §3 Record invariants, §4.2).
func ValidateRecord(r model.Record) error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if err := ValidateTTL(r.TTL); err != nil {
		return err
	}
	if r.Type == model.RRTypeCNAME && r.Name == "@" {
		return apperrors.Validation("name", "CNAME at zone apex", "use A/AAAA at @")
	}
	if r.Type == model.RRTypeSRV {
		if err := ValidateSRVName(r.Name); err != nil {
			return err
		}
	}
	return validatePayload(r)
}

func validatePayload(r model.Record) error {
	switch r.Type {
	case model.RRTypeA:
		_, err := ValidateIPv4(r.Value)
		return err
	case model.RRTypeAAAA:
		_, err := ValidateIPv6(r.Value)
		return err
	case model.RRTypeCNAME, model.RRTypeNS, model.RRTypePTR:
		return ValidateName(strings.TrimSuffix(r.Value, "."))
	case model.RRTypeMX:
		if r.Priority == nil {
			return apperrors.Validation("priority", "MX records require a priority", "set a priority between 0 and 65535")
		}
		return ValidateName(strings.TrimSuffix(r.Value, "."))
	case model.RRTypeTXT:
		return validateTXT(r.Value)
	case model.RRTypeSRV:
		return validateSRVValue(r)
	case model.RRTypeCAA:
		return validateViaMiekg(r, dns.TypeCAA)
	case model.RRTypeSSHFP:
		return validateViaMiekg(r, dns.TypeSSHFP)
	case model.RRTypeTLSA:
		return validateViaMiekg(r, dns.TypeTLSA)
	case model.RRTypeNAPTR:
		return validateViaMiekg(r, dns.TypeNAPTR)
	case model.RRTypeLOC:
		return validateViaMiekg(r, dns.TypeLOC)
	case model.RRTypeSOA:
		return apperrors.Validation("type", "SOA records are derived from zone fields, not created directly", "edit the zone's SOA fields instead")
	default:
		return apperrors.Validation("type", "unsupported record type", "use one of A, AAAA, CNAME, MX, TXT, SRV, PTR, NS, CAA, SSHFP, TLSA, NAPTR, LOC")
	}
}

// validateTXT performs basic content sanity for SPF/DKIM/DMARC TXT records
// in addition to generic length limits.
func validateTXT(value string) error {
	if len(value) == 0 {
		return apperrors.Validation("value", "TXT value must not be empty", "provide TXT content")
	}
	if len(value) > 2048 {
		return apperrors.Validation("value", "TXT value too long", "split long TXT content across multiple strings")
	}
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(lower, "v=spf1"):
		if !strings.Contains(lower, "all") {
			return apperrors.Validation("value", "SPF record has no terminal mechanism", "end the record with \"~all\" or \"-all\"")
		}
	case strings.HasPrefix(lower, "v=dkim1"):
		if !strings.Contains(lower, "p=") {
			return apperrors.Validation("value", "DKIM record missing public key (p=)", "include a \"p=<base64-key>\" tag")
		}
	case strings.HasPrefix(lower, "v=dmarc1"):
		if !strings.Contains(lower, "p=") {
			return apperrors.Validation("value", "DMARC record missing policy (p=)", "include a \"p=none|quarantine|reject\" tag")
		}
	}
	return nil
}

// validateSRVValue parses "priority weight port target" and validates each field.
func validateSRVValue(r model.Record) error {
	fields := strings.Fields(r.Value)
	if len(fields) != 4 {
		return apperrors.Validation("value", "SRV value must be \"priority weight port target\"", "e.g. \"10 60 5060 sipserver.example.com.\"")
	}
	for i, label := range []string{"priority", "weight", "port"} {
		n, err := strconv.Atoi(fields[i])
		if err != nil || n < 0 || n > 65535 {
			return apperrors.Validation("value", fmt.Sprintf("SRV %s must be between 0 and 65535", label), "use a value between 0 and 65535")
		}
	}
	return ValidateName(strings.TrimSuffix(fields[3], "."))
}

// validateViaMiekg cross-checks record types whose wire grammar is fiddly
// enough (CAA, SSHFP, TLSA, NAPTR, LOC) that hand-rolling a parser invites
// bugs; miekg/dns's zone-file parser is authoritative here.
func validateViaMiekg(r model.Record, rrType uint16) error {
	zoneLine := fmt.Sprintf("%s %d IN %s %s", dnsName(r.Name), r.TTL, dns.TypeToString[rrType], r.Value)
	if _, err := dns.NewRR(zoneLine); err != nil {
		return apperrors.Validation("value", fmt.Sprintf("invalid %s record: %v", dns.TypeToString[rrType], err), "check the record's wire-format field order")
	}
	return nil
}

func dnsName(name string) string {
	if name == "@" {
		return "example.invalid."
	}
	if !strings.HasSuffix(name, ".") {
		return name + ".example.invalid."
	}
	return name
}
