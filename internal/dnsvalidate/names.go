// Package dnsvalidate implements the pure, deterministic validation
// functions of spec §4.2 (C2 DNS Validators). Nothing here performs I/O;
// every function takes plain values and returns a plain value or an
// *apperrors.Error built with apperrors.Validation.
package dnsvalidate

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/dnscp/dnscp/internal/apperrors"
)

const (
	maxLabelLength = 63
	maxNameLength  = 253
)

// idnaProfile normalises Unicode domain labels to their ASCII (punycode)
// form before length/character validation, so internationalised names are
// validated against the same rules as ASCII ones.
var idnaProfile = idna.New(
	idna.ValidateLabels(true),
	idna.VerifyDNSLength(false), // we apply our own length rules below
)

// ValidateName checks a DNS name for label/total length and character
// rules. Wildcard prefixes ("*.label...") are permitted. Underscore labels
// (service labels, e.g. "_sip._tcp") are permitted.
func ValidateName(name string) error {
	if name == "" {
		return apperrors.Validation("name", "name must not be empty", "provide a DNS name or \"@\" for the zone apex")
	}
	if name == "@" {
		return nil
	}

	working := name
	if strings.HasPrefix(working, "*.") {
		working = working[2:]
		if working == "" {
			return apperrors.Validation("name", "wildcard must be followed by a label", "use \"*.example.com\"")
		}
	}

	ascii, err := idnaProfile.ToASCII(working)
	if err != nil {
		return apperrors.Validation("name", "invalid DNS name: "+err.Error(), "use a valid Unicode or ASCII domain name")
	}

	if len(ascii) > maxNameLength {
		return apperrors.Validation("name", "name exceeds 253 total characters", "shorten the name")
	}

	labels := strings.Split(strings.TrimSuffix(ascii, "."), ".")
	for _, label := range labels {
		if label == "" {
			return apperrors.Validation("name", "name contains an empty label", "remove consecutive dots")
		}
		if len(label) > maxLabelLength {
			return apperrors.Validation("name", "label exceeds 63 characters", "shorten the label \""+label+"\"")
		}
		if !validLabelChars(label) {
			return apperrors.Validation("name", "label contains invalid characters", "labels may contain letters, digits, hyphens, and a leading underscore for service labels")
		}
	}
	return nil
}

// validLabelChars allows alphanumerics, hyphens, and a leading underscore
// (service labels like "_sip" or "_tcp" used by SRV records).
func validLabelChars(label string) bool {
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' && i != 0 && i != len(label)-1:
		case r == '_' && i == 0:
		default:
			return false
		}
	}
	return true
}

// IsWildcard reports whether name has the "*.label..." wildcard prefix.
func IsWildcard(name string) bool {
	return strings.HasPrefix(name, "*.")
}

// ValidateSRVName checks that name matches "_service._proto.label..."
// (spec §3 Record invariants).
func ValidateSRVName(name string) error {
	parts := strings.SplitN(name, ".", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "_") || !strings.HasPrefix(parts[1], "_") {
		return apperrors.Validation("name", "SRV name must match _service._proto.label", "use a name like _sip._tcp.example.com")
	}
	return ValidateName(name)
}

// DNSDottedEmail validates and returns whether s is a syntactically valid
// DNS-dotted SOA admin email (e.g. "admin.example.com" for admin@example.com).
func DNSDottedEmail(s string) error {
	if strings.Contains(s, "@") {
		return apperrors.Validation("admin_email", "SOA admin email must be in DNS-dotted form", "use DNS-dotted form, e.g. \"admin.example.com\" for admin@example.com")
	}
	if err := ValidateName(s); err != nil {
		return apperrors.Validation("admin_email", "SOA admin email is not a valid DNS-dotted name", "use DNS-dotted form, e.g. \"admin.example.com\"")
	}
	// Must have at least a local-part label and a domain, i.e. 2+ labels.
	if len(strings.Split(strings.TrimSuffix(s, "."), ".")) < 2 {
		return apperrors.Validation("admin_email", "SOA admin email must include a local part and domain", "use DNS-dotted form, e.g. \"admin.example.com\"")
	}
	return nil
}
