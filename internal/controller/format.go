package controller

import (
	"fmt"
	"strings"

	"github.com/stedrow/sherpa-dns/internal/model"
)

// FormatPlan renders a human-readable diff of a plan, used for dry_run
// logging. Grounded on the teacher's FormatHTTPRoute: a strings.Builder
// walked section by section with fmt.Fprintf, generalized from dumping
// one Kubernetes object's spec to dumping a plan's three buckets.
func FormatPlan(p model.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan: %d create(s), %d update(s), %d delete(s)\n", len(p.Creates), len(p.Updates), len(p.Deletes))

	if len(p.Creates) > 0 {
		fmt.Fprintf(&b, "  Creates:\n")
		for _, e := range p.Creates {
			writeEndpointLine(&b, e)
		}
	}
	if len(p.Updates) > 0 {
		fmt.Fprintf(&b, "  Updates:\n")
		for _, e := range p.Updates {
			writeEndpointLine(&b, e)
		}
	}
	if len(p.Deletes) > 0 {
		fmt.Fprintf(&b, "  Deletes:\n")
		for _, e := range p.Deletes {
			writeEndpointLine(&b, e)
		}
	}

	return b.String()
}

func writeEndpointLine(b *strings.Builder, e model.Endpoint) {
	fmt.Fprintf(b, "    - %s %s -> %s (ttl=%d proxied=%v)\n",
		e.DNSName, e.RecordType, strings.Join(e.Targets, ","), e.TTL, e.Proxied)
}
