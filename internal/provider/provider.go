// Package provider defines the narrow facade the Registry drives to
// mutate DNS records at a hosted provider, and the error taxonomy used
// to classify failures (spec.md §7).
package provider

import (
	"context"

	"github.com/stedrow/sherpa-dns/internal/model"
)

// Record is a single record as reported by or sent to the provider. It is
// the Provider's own representation; the Registry translates between
// Record and model.Endpoint, grouping fanned-out A records that share
// (Name, Type) into a single Endpoint on read.
type Record struct {
	ID      string
	ZoneID  string
	Name    string
	Type    model.RecordType
	Content string
	TTL     int
	Proxied bool
}

// Provider is a narrow facade over a hosted DNS API.
type Provider interface {
	// Zones lists the zones visible to this account, already filtered by
	// the configured domain include/exclude rules.
	Zones(ctx context.Context) ([]model.Zone, error)

	// Records lists records in zone, optionally restricted to types. An
	// empty types list means "all types".
	Records(ctx context.Context, zone model.Zone, types []model.RecordType) ([]Record, error)

	Create(ctx context.Context, zone model.Zone, rec Record) (id string, err error)
	Update(ctx context.Context, zone model.Zone, id string, rec Record) error
	Delete(ctx context.Context, zone model.Zone, id string) error
}
