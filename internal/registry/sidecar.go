package registry

import "strings"

// sidecarName derives the TXT sidecar name for dnsName: the leftmost
// label has any literal "*" replaced by wildcardReplacement, then prefix
// is prepended to that (possibly replaced) leftmost label. Grounded on
// the teacher's SplitHostname leftmost-label split, generalized here to
// also rewrite the label rather than only separate it.
func sidecarName(dnsName, prefix, wildcardReplacement string) string {
	labels := strings.SplitN(dnsName, ".", 2)
	leftmost := labels[0]
	if leftmost == "*" {
		leftmost = wildcardReplacement
	}
	rest := ""
	if len(labels) > 1 {
		rest = "." + labels[1]
	}
	return prefix + leftmost + rest
}

// sidecarContent builds the plaintext sidecar payload for an owned
// endpoint.
func sidecarContent(ownerID string, recordType string) string {
	return "heritage=sherpa-dns,owner=" + ownerID + ",type=" + recordType
}

// parseSidecarContent parses a decrypted/plaintext sidecar payload into
// its key-value pairs. Returns nil if the mandatory heritage token is
// absent (spec.md §6: "the literal token heritage=sherpa-dns MUST
// appear; absence => foreign record").
func parseSidecarContent(content string) map[string]string {
	fields := strings.Split(content, ",")
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		values[strings.TrimSpace(kv[0])] = strings.TrimSpace(strings.Trim(kv[1], `"`))
	}
	if values["heritage"] != "sherpa-dns" {
		return nil
	}
	return values
}
