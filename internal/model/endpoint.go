// Package model holds the data types shared by every component of the
// reconciliation engine: the desired/observed DNS endpoint, the provider's
// zone, and the plan of changes that moves one set of endpoints to another.
package model

import (
	"sort"
	"strings"
)

// RecordType is one of the DNS record types Sherpa-DNS manages.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeTXT   RecordType = "TXT"
)

// AutoTTL is the sentinel TTL value meaning "let the provider choose".
const AutoTTL = 1

// SourceRef identifies the container an endpoint was derived from. It is
// opaque to the Provider and Registry; it travels with the endpoint (also
// into the CleanupScheduler's pending entries), but no component reads
// its fields.
type SourceRef struct {
	ContainerID   string
	ContainerName string
}

// Endpoint is the unit of desired or observed DNS state.
type Endpoint struct {
	DNSName    string
	RecordType RecordType
	Targets    []string
	TTL        int
	Proxied    bool

	// OwnerID is set by the Registry when it reads an owned record back
	// from the provider. Source never sets it.
	OwnerID string

	// SourceRef is set by the Source; no other component reads it. It is
	// never sent to the Provider.
	SourceRef SourceRef
}

// Key identifies an endpoint for planning purposes: (dns_name, record_type).
type Key struct {
	DNSName    string
	RecordType RecordType
}

// Key returns the planning key for e, with the name lowercased per spec.
func (e Endpoint) Key() Key {
	return Key{DNSName: strings.ToLower(e.DNSName), RecordType: e.RecordType}
}

// Comparable returns the tuple used to detect whether e needs to be
// updated in place: sorted targets, TTL (with the auto sentinel
// normalized), and the proxied flag.
func (e Endpoint) Comparable() (targets string, ttl int, proxied bool) {
	sorted := append([]string(nil), e.Targets...)
	sort.Strings(sorted)
	normalizedTTL := e.TTL
	if normalizedTTL == 0 {
		normalizedTTL = AutoTTL
	}
	return strings.Join(sorted, ","), normalizedTTL, e.Proxied
}

// NeedsUpdate reports whether current must be replaced by desired for the
// same key: target set, TTL (treating 0 and AutoTTL as equal), and proxied
// must all match, otherwise an update is required.
func NeedsUpdate(current, desired Endpoint) bool {
	ct, cttl, cp := current.Comparable()
	dt, dttl, dp := desired.Comparable()
	return ct != dt || cttl != dttl || cp != dp
}

// IsWildcard reports whether dnsName's leftmost label is the literal "*".
func IsWildcard(dnsName string) bool {
	return strings.HasPrefix(dnsName, "*.")
}
