package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dnscp/dnscp/internal/model"
)

// OptionsConfig carries the global resolver options that the projection
// engine's config section needs to render (spec §4.4 "Global resolver config").
type OptionsConfig struct {
	CacheSizeMB       int
	RecursionACL      []string
	RateLimitPerSec   int
	DNSSECValidation  bool
	StatisticsPort    int
	LogChannelPath    string
}

// Options renders named.conf.options (spec §6).
func Options(cfg OptionsConfig, rpzZones []string) []byte {
	var b strings.Builder

	b.WriteString("options {\n")
	fmt.Fprintf(&b, "\tmax-cache-size %dm;\n", cfg.CacheSizeMB)
	b.WriteString("\tallow-recursion {\n")
	acl := append([]string(nil), cfg.RecursionACL...)
	sort.Strings(acl)
	for _, a := range acl {
		fmt.Fprintf(&b, "\t\t%s;\n", a)
	}
	b.WriteString("\t};\n")
	fmt.Fprintf(&b, "\trate-limit { responses-per-second %d; };\n", cfg.RateLimitPerSec)
	if cfg.DNSSECValidation {
		b.WriteString("\tdnssec-validation auto;\n")
	} else {
		b.WriteString("\tdnssec-validation no;\n")
	}
	b.WriteString("};\n\n")

	fmt.Fprintf(&b, "statistics-channels {\n\tinet 127.0.0.1 port %d;\n};\n\n", cfg.StatisticsPort)

	if cfg.LogChannelPath != "" {
		b.WriteString("logging {\n")
		fmt.Fprintf(&b, "\tchannel query_log { file %q versions 5 size 50m; print-time yes; };\n", cfg.LogChannelPath)
		b.WriteString("\tcategory queries { query_log; };\n")
		b.WriteString("};\n\n")
	}

	if len(rpzZones) > 0 {
		sorted := append([]string(nil), rpzZones...)
		sort.Strings(sorted)
		b.WriteString("response-policy {\n")
		for _, z := range sorted {
			fmt.Fprintf(&b, "\tzone %q;\n", z)
		}
		b.WriteString("};\n")
	}

	return []byte(b.String())
}

// Local renders named.conf.local: zone stanzas for master/slave/forward and
// RPZ zones (spec §4.4 "Local config").
func Local(zones []model.Zone, rpzZoneNames []string) []byte {
	var b strings.Builder

	sorted := append([]model.Zone(nil), zones...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, z := range sorted {
		if !z.Active {
			continue
		}
		fmt.Fprintf(&b, "zone %q {\n", z.Name)
		switch z.Type {
		case model.ZoneMaster:
			b.WriteString("\ttype master;\n")
			fmt.Fprintf(&b, "\tfile \"zones/db.%s\";\n", z.Name)
		case model.ZoneSlave:
			b.WriteString("\ttype slave;\n")
			fmt.Fprintf(&b, "\tfile \"zones/db.%s\";\n", z.Name)
			b.WriteString("\tmasters {\n")
			for _, ip := range z.MasterServers {
				fmt.Fprintf(&b, "\t\t%s;\n", ip)
			}
			b.WriteString("\t};\n")
		case model.ZoneForward:
			b.WriteString("\ttype forward;\n")
			b.WriteString("\tforwarders {\n")
			for _, ip := range z.ForwarderIPs {
				fmt.Fprintf(&b, "\t\t%s;\n", ip)
			}
			b.WriteString("\t};\n")
		}
		b.WriteString("};\n\n")
	}

	rpzSorted := append([]string(nil), rpzZoneNames...)
	sort.Strings(rpzSorted)
	for _, z := range rpzSorted {
		fmt.Fprintf(&b, "zone %q {\n\ttype master;\n\tfile \"rpz/db.rpz.%s\";\n\tallow-query { none; };\n};\n\n", z, z)
	}

	return []byte(b.String())
}
