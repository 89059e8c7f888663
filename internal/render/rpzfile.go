package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dnscp/dnscp/internal/model"
)

// RPZFile deterministically renders one db.rpz.<category> file
// (spec §4.4, §6).
func RPZFile(rpzZone string, rules []model.RPZRule, serial uint32) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "$TTL 300\n")
	fmt.Fprintf(&b, "@ IN SOA %s. admin.%s. (\n", nsHostname, strings.TrimSuffix(nsHostname, "."))
	fmt.Fprintf(&b, "\t\t%s\t; serial\n", FormatSerial(serial))
	fmt.Fprintf(&b, "\t\t3600\t\t; refresh\n")
	fmt.Fprintf(&b, "\t\t600\t\t; retry\n")
	fmt.Fprintf(&b, "\t\t86400\t\t; expire\n")
	fmt.Fprintf(&b, "\t\t300 )\t\t; minimum\n")
	fmt.Fprintf(&b, "@ IN NS %s\n\n", nsHostname)

	sorted := sortedActiveRules(rules)
	for _, r := range sorted {
		fmt.Fprintf(&b, "%s\tIN\tCNAME\t%s\n", r.Domain, rpzTarget(r))
	}

	return []byte(b.String())
}

func sortedActiveRules(rules []model.RPZRule) []model.RPZRule {
	out := make([]model.RPZRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// rpzTarget returns the CNAME target encoding the rule's action
// (spec §4.4: block -> ".", passthru -> "rpz-passthru.", redirect -> "<target>.").
func rpzTarget(r model.RPZRule) string {
	switch r.Action {
	case model.RPZBlock:
		return "."
	case model.RPZPassthru:
		return "rpz-passthru."
	case model.RPZRedirect:
		return strings.TrimSuffix(r.RedirectTo, ".") + "."
	default:
		return "."
	}
}
