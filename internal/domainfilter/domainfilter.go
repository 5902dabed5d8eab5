// Package domainfilter implements the include/exclude zone matching rules
// from spec.md §4.7, and the longest-suffix zone lookup used by the
// Registry to map an endpoint's DNS name onto a managed zone.
package domainfilter

import "strings"

// Filter decides whether a zone name is managed, given include and
// exclude pattern lists. Each pattern is either a literal name or a
// "*."-prefixed wildcard matching any depth of subdomain.
type Filter struct {
	Include []string
	Exclude []string
}

// New builds a Filter from configured include/exclude pattern lists.
func New(include, exclude []string) Filter {
	return Filter{Include: include, Exclude: exclude}
}

// Match reports whether name is managed: (Include is empty OR some
// Include pattern matches) AND (no Exclude pattern matches).
func (f Filter) Match(name string) bool {
	if matchesAny(name, f.Exclude) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	return matchesAny(name, f.Include)
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if matchesPattern(name, p) {
			return true
		}
	}
	return false
}

func matchesPattern(name, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return strings.HasSuffix(name, "."+suffix)
	}
	return name == pattern
}

// ZoneFor returns the longest-suffix zone match for dnsName among zones,
// or false if dnsName does not lie within any of them. It walks up
// dnsName's labels one at a time, preferring the most specific (longest)
// match, the same top-down-to-general walk the domain map lookup in the
// original config package used for IP resolution, here repurposed for
// zone selection.
func ZoneFor(dnsName string, zones map[string]string) (zoneID string, zoneName string, ok bool) {
	name := strings.TrimSuffix(strings.ToLower(dnsName), ".")
	// A wildcard name's zone is matched on the name with the leading
	// "*." label stripped, since the zone itself never contains "*".
	name = strings.TrimPrefix(name, "*.")

	for h := name; h != ""; {
		if id, found := zones[h]; found {
			return id, h, true
		}
		idx := strings.Index(h, ".")
		if idx < 0 {
			break
		}
		h = h[idx+1:]
	}
	return "", "", false
}
