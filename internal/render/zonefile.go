package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dnscp/dnscp/internal/model"
)

// nsHostname is the resolver's own hostname used for the NS record in every
// rendered zone file. A real deployment would source this from config; it
// is held as a package constant here since spec §6 does not name a
// dedicated option for it.
const nsHostname = "ns1.internal."

// ZoneFile deterministically renders a master zone's db.<zone> contents
// (spec §4.4, §6 "Resolver file layout").
func ZoneFile(z model.Zone, records []model.Record) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "$TTL %d\n", z.Minimum)
	fmt.Fprintf(&b, "@ IN SOA %s. %s. (\n", nsHostname, z.Email)
	fmt.Fprintf(&b, "\t\t%s\t; serial\n", FormatSerial(z.Serial))
	fmt.Fprintf(&b, "\t\t%d\t\t; refresh\n", z.Refresh)
	fmt.Fprintf(&b, "\t\t%d\t\t; retry\n", z.Retry)
	fmt.Fprintf(&b, "\t\t%d\t\t; expire\n", z.Expire)
	fmt.Fprintf(&b, "\t\t%d )\t\t; minimum\n", z.Minimum)
	fmt.Fprintf(&b, "@ IN NS %s\n\n", nsHostname)

	sorted := sortedActiveRecords(records)
	for _, r := range sorted {
		b.WriteString(formatRecordLine(r))
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

// sortedActiveRecords returns only active records, sorted by (name, type)
// as required by spec §4.4.
func sortedActiveRecords(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// formatRecordLine renders one Record using type-appropriate formatting.
func formatRecordLine(r model.Record) string {
	name := r.Name
	switch r.Type {
	case model.RRTypeMX:
		priority := uint16(0)
		if r.Priority != nil {
			priority = *r.Priority
		}
		return fmt.Sprintf("%s\t%d\tIN\t%s\t%d\t%s", name, r.TTL, r.Type, priority, r.Value)
	case model.RRTypeSRV:
		// r.Value already holds "priority weight port target" per §C2.
		return fmt.Sprintf("%s\t%d\tIN\t%s\t%s", name, r.TTL, r.Type, r.Value)
	case model.RRTypeTXT:
		return fmt.Sprintf("%s\t%d\tIN\t%s\t%q", name, r.TTL, r.Type, r.Value)
	default:
		return fmt.Sprintf("%s\t%d\tIN\t%s\t%s", name, r.TTL, r.Type, r.Value)
	}
}
