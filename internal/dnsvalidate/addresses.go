package dnsvalidate

import (
	"net"

	"github.com/dnscp/dnscp/internal/apperrors"
)

// ValidateIPv4 parses and normalises an IPv4 address literal.
func ValidateIPv4(s string) (string, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return "", apperrors.Validation("value", "not a valid IPv4 address", "use dotted-quad form, e.g. 192.168.1.10")
	}
	return ip.To4().String(), nil
}

// ValidateIPv6 parses and normalises an IPv6 address literal.
func ValidateIPv6(s string) (string, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() != nil || ip.To16() == nil {
		return "", apperrors.Validation("value", "not a valid IPv6 address", "use standard IPv6 notation, e.g. 2001:db8::1")
	}
	return ip.String(), nil
}

// ValidateIP accepts either family and reports which one matched.
func ValidateIP(s string) (normalised string, isV6 bool, err error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return "", false, apperrors.Validation("value", "not a valid IP address", "use a valid IPv4 or IPv6 literal")
	}
	if ip.To4() != nil {
		return ip.To4().String(), false, nil
	}
	return ip.String(), true, nil
}

// ValidateTTL enforces the spec §3 bound 1..2^31-1 inclusive.
func ValidateTTL(ttl uint32) error {
	if ttl < 1 || ttl > 1<<31-1 {
		return apperrors.Validation("ttl", "TTL must be between 1 and 2147483647", "use a TTL within the signed 32-bit positive range")
	}
	return nil
}

// ValidatePort checks a TCP/UDP port is in the valid non-zero range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return apperrors.Validation("port", "port must be between 1 and 65535", "use a valid port number")
	}
	return nil
}

// ValidatePriority enforces the 1..10 forwarder server priority bound
// (spec §3 "Forwarder").
func ValidatePriority(priority int) error {
	if priority < 1 || priority > 10 {
		return apperrors.Validation("priority", "priority must be between 1 and 10", "use a priority between 1 (highest) and 10 (lowest)")
	}
	return nil
}
