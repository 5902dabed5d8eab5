package planner

import (
	"testing"

	"github.com/stedrow/sherpa-dns/internal/model"
)

func ep(name string, targets ...string) model.Endpoint {
	return model.Endpoint{DNSName: name, RecordType: model.RecordTypeA, Targets: targets, TTL: model.AutoTTL}
}

func TestPlanSyncPolicy(t *testing.T) {
	current := []model.Endpoint{
		ep("keep.example.com", "10.0.0.1"),
		ep("stale.example.com", "10.0.0.2"),
		ep("changed.example.com", "10.0.0.3"),
	}
	desired := []model.Endpoint{
		ep("keep.example.com", "10.0.0.1"),
		ep("changed.example.com", "10.0.0.99"),
		ep("new.example.com", "10.0.0.4"),
	}

	p := Plan(desired, current, PolicySync)

	if len(p.Creates) != 1 || p.Creates[0].DNSName != "new.example.com" {
		t.Errorf("Creates = %+v, want [new.example.com]", p.Creates)
	}
	if len(p.Updates) != 1 || p.Updates[0].DNSName != "changed.example.com" {
		t.Errorf("Updates = %+v, want [changed.example.com]", p.Updates)
	}
	if len(p.Deletes) != 1 || p.Deletes[0].DNSName != "stale.example.com" {
		t.Errorf("Deletes = %+v, want [stale.example.com]", p.Deletes)
	}
}

func TestPlanUpsertOnlyPolicyNeverDeletes(t *testing.T) {
	current := []model.Endpoint{ep("stale.example.com", "10.0.0.2")}
	desired := []model.Endpoint{ep("new.example.com", "10.0.0.4")}

	p := Plan(desired, current, PolicyUpsertOnly)

	if len(p.Deletes) != 0 {
		t.Errorf("Deletes = %+v, want none under upsert-only policy", p.Deletes)
	}
	if len(p.Creates) != 1 {
		t.Errorf("Creates = %+v, want [new.example.com]", p.Creates)
	}
}

func TestPlanSortsCreatesRegardlessOfInputOrder(t *testing.T) {
	// Desired is deliberately out of (dns_name, record_type) order; Plan
	// must sort its own output rather than rely on the caller having done so.
	desired := []model.Endpoint{
		ep("zebra.example.com", "10.0.0.1"),
		ep("apple.example.com", "10.0.0.2"),
		ep("mango.example.com", "10.0.0.3"),
	}

	p := Plan(desired, nil, PolicySync)

	if len(p.Creates) != 3 {
		t.Fatalf("Creates = %+v, want 3 entries", p.Creates)
	}
	want := []string{"apple.example.com", "mango.example.com", "zebra.example.com"}
	for i, name := range want {
		if p.Creates[i].DNSName != name {
			t.Errorf("Creates[%d].DNSName = %q, want %q (Creates = %+v)", i, p.Creates[i].DNSName, name, p.Creates)
		}
	}
}

func TestPlanNoopWhenIdentical(t *testing.T) {
	eps := []model.Endpoint{ep("same.example.com", "10.0.0.1")}

	p := Plan(eps, eps, PolicySync)

	if !p.IsEmpty() {
		t.Errorf("Plan = %+v, want empty plan for identical desired/current", p)
	}
}
