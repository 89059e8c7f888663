package dnsvalidate

import (
	"github.com/dnscp/dnscp/internal/apperrors"
	"github.com/dnscp/dnscp/internal/model"
)

// ValidateZone checks a Zone's SOA fields and zone-type-specific required
// fields (spec §3 "Zone" invariants).
func ValidateZone(z model.Zone) error {
	if err := ValidateName(z.Name); err != nil {
		return err
	}
	if err := DNSDottedEmail(z.Email); err != nil {
		return err
	}
	for _, f := range []struct {
		name  string
		value uint32
	}{
		{"refresh", z.Refresh},
		{"retry", z.Retry},
		{"expire", z.Expire},
		{"minimum", z.Minimum},
	} {
		if f.value == 0 || f.value > 1<<31-1 {
			return apperrors.Validation(f.name, f.name+" must be a positive 32-bit value", "use a positive value below 2147483648")
		}
	}

	switch z.Type {
	case model.ZoneMaster:
		// Master zones own their records; no extra required fields here.
	case model.ZoneSlave:
		if len(z.MasterServers) == 0 {
			return apperrors.Validation("master_servers", "slave zones require at least one master server IP", "add at least one master_servers entry")
		}
		for _, ip := range z.MasterServers {
			if _, _, err := ValidateIP(ip); err != nil {
				return apperrors.Validation("master_servers", "invalid master server IP \""+ip+"\"", "use a valid IPv4 or IPv6 address")
			}
		}
	case model.ZoneForward:
		if len(z.ForwarderIPs) == 0 {
			return apperrors.Validation("forwarder_ips", "forward zones require at least one forwarder IP", "add at least one forwarder_ips entry")
		}
		for _, ip := range z.ForwarderIPs {
			if _, _, err := ValidateIP(ip); err != nil {
				return apperrors.Validation("forwarder_ips", "invalid forwarder IP \""+ip+"\"", "use a valid IPv4 or IPv6 address")
			}
		}
	default:
		return apperrors.Validation("zone_type", "unknown zone type", "use one of master, slave, forward")
	}
	return nil
}

// ValidateSerialAdvance enforces the ordering half of spec §4.4/§8
// invariant 2: a new serial must strictly exceed the prior one. It does not
// check the daily YYYYMMDD00 floor; render.NextSerial applies that floor
// when it computes a serial.
func ValidateSerialAdvance(prior, next uint32) error {
	if next <= prior {
		return apperrors.Validation("serial", "serial must strictly increase", "bump the serial above the prior value")
	}
	return nil
}

// ValidateForwarder checks a Forwarder's structural invariants
// (spec §3 "Forwarder").
func ValidateForwarder(f model.Forwarder) error {
	if f.Name == "" {
		return apperrors.Validation("name", "forwarder name must not be empty", "provide a unique forwarder name")
	}
	if len(f.Servers) == 0 {
		return apperrors.Validation("servers", "forwarder requires at least one server", "add at least one upstream server")
	}
	seen := make(map[string]bool, len(f.Servers))
	for _, s := range f.Servers {
		if _, _, err := ValidateIP(s.IP); err != nil {
			return apperrors.Validation("servers", "invalid server IP \""+s.IP+"\"", "use a valid IPv4 or IPv6 address")
		}
		if err := ValidatePort(int(s.Port)); err != nil {
			return err
		}
		if err := ValidatePriority(int(s.Priority)); err != nil {
			return err
		}
		key := s.IP + ":" + itoa32(s.Port)
		if seen[key] {
			return apperrors.Conflict("servers", "duplicate server "+key+" within forwarder")
		}
		seen[key] = true
	}
	for _, d := range f.Domains {
		if err := ValidateName(d); err != nil {
			return err
		}
	}
	return nil
}

func itoa32(n uint16) string {
	if n == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ValidateRPZRule checks an RPZRule's structural invariants (spec §3 "RPZRule").
func ValidateRPZRule(r model.RPZRule) error {
	name := r.Domain
	if IsWildcard(name) {
		name = name[2:]
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	switch r.Action {
	case model.RPZBlock, model.RPZPassthru:
		if r.RedirectTo != "" {
			return apperrors.Validation("redirect_target", "redirect_target only applies to action=redirect", "remove redirect_target or change action to redirect")
		}
	case model.RPZRedirect:
		if r.RedirectTo == "" {
			return apperrors.Validation("redirect_target", "redirect_target is required when action=redirect", "set redirect_target to the CNAME destination")
		}
		if err := ValidateName(r.RedirectTo); err != nil {
			return err
		}
	default:
		return apperrors.Validation("action", "unknown RPZ action", "use one of block, redirect, passthru")
	}
	return nil
}
