// Package planner computes the deterministic diff between a source's
// desired endpoints and the registry's observed current endpoints. It is
// pure: no I/O, no logging, no clock reads. Grounded on plan.py's
// calculate_changes, generalized from a method on a stateful Plan object
// into a standalone function over two slices.
package planner

import (
	"sort"

	"github.com/stedrow/sherpa-dns/internal/model"
)

// Policy controls whether endpoints present in current but absent from
// desired are deleted ("sync") or left alone ("upsert-only").
type Policy string

const (
	PolicySync       Policy = "sync"
	PolicyUpsertOnly Policy = "upsert-only"
)

// Plan diffs desired against current and returns the changes needed to
// bring current to desired under policy. Endpoints are matched by
// model.Key; within a matched pair, NeedsUpdate decides update-vs-noop.
func Plan(desired, current []model.Endpoint, policy Policy) model.Plan {
	currentByKey := make(map[model.Key]model.Endpoint, len(current))
	for _, e := range current {
		currentByKey[e.Key()] = e
	}

	seen := make(map[model.Key]bool, len(desired))
	var p model.Plan

	for _, d := range desired {
		key := d.Key()
		seen[key] = true
		c, exists := currentByKey[key]
		switch {
		case !exists:
			p.Creates = append(p.Creates, d)
		case model.NeedsUpdate(c, d):
			p.Updates = append(p.Updates, d)
		}
	}

	if policy == PolicySync {
		for _, c := range current {
			if !seen[c.Key()] {
				p.Deletes = append(p.Deletes, c)
			}
		}
	}

	sortEndpoints(p.Creates)
	sortEndpoints(p.Updates)
	sortEndpoints(p.Deletes)
	return p
}

// sortEndpoints orders es by (DNSName, RecordType) so Plan's output order
// is deterministic on its own, independent of whatever order desired and
// current arrived in.
func sortEndpoints(es []model.Endpoint) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].DNSName != es[j].DNSName {
			return es[i].DNSName < es[j].DNSName
		}
		return es[i].RecordType < es[j].RecordType
	})
}
