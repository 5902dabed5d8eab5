// Package cleanup implements the delayed-deletion queue that absorbs
// transient container disappearances (spec.md §4.5). Grounded on
// original_source/utils/cleanup_tracker.py's mark/unmark/eligible shape,
// rebuilt around model.Key and time.Time/time.Duration instead of string
// record IDs and Unix-float timestamps.
package cleanup

import (
	"sync"
	"time"

	"github.com/stedrow/sherpa-dns/internal/model"
)

// Scheduler holds pending deletions, keyed by endpoint key, until their
// scheduled time arrives. It is safe for concurrent use: the Controller
// goroutine is the only caller that mutates it, while the metrics gauge
// reads Pending from the health server's goroutine.
type Scheduler struct {
	mu      sync.Mutex
	pending map[model.Key]pendingEntry
}

type pendingEntry struct {
	endpoint    model.Endpoint
	scheduledAt time.Time
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{pending: make(map[model.Key]pendingEntry)}
}

// Schedule marks e for deletion at scheduledAt, overwriting any existing
// pending entry for the same key (the latest observed state wins).
func (s *Scheduler) Schedule(e model.Endpoint, scheduledAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[e.Key()] = pendingEntry{endpoint: e, scheduledAt: scheduledAt}
}

// Cancel removes any pending deletion for key. It is a no-op if key has
// no pending entry.
func (s *Scheduler) Cancel(key model.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}

// Due returns and removes every pending entry whose scheduledAt is at or
// before now.
func (s *Scheduler) Due(now time.Time) []model.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Endpoint
	for key, entry := range s.pending {
		if !entry.scheduledAt.After(now) {
			due = append(due, entry.endpoint)
			delete(s.pending, key)
		}
	}
	return due
}

// Pending reports the number of entries currently awaiting deletion, for
// the sherpa_dns_cleanup_scheduler_size metric.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Has reports whether key has a pending deletion, used by the Controller
// to decide whether a reappearing endpoint needs Cancel.
func (s *Scheduler) Has(key model.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}
