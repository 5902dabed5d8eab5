// Package source defines the contract that turns a container runtime's
// inventory into the desired endpoint set (spec.md §4.1).
package source

import (
	"context"

	"github.com/stedrow/sherpa-dns/internal/model"
)

// Source produces the current desired endpoint set and a coalescing
// stream of nudges telling the Controller that a reconciliation should
// happen sooner than the next scheduled tick.
type Source interface {
	// Snapshot lists all running containers, filters and projects their
	// labels into endpoints, and deduplicates by (dns_name, record_type).
	Snapshot(ctx context.Context) ([]model.Endpoint, error)

	// Events returns a channel that receives an opaque struct{} value
	// whenever a relevant container lifecycle event arrives. Events does
	// not compute deltas; the Source only tells the Controller to
	// reconcile sooner. The channel is closed when ctx is cancelled.
	Events(ctx context.Context) (<-chan struct{}, error)
}
