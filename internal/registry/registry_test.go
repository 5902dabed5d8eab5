package registry

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	"github.com/stedrow/sherpa-dns/internal/model"
	"github.com/stedrow/sherpa-dns/internal/provider"
)

type fakeProvider struct {
	zones   []model.Zone
	records map[string][]provider.Record // zone ID -> records
	nextID  int
}

func newFakeProvider(zoneName string) *fakeProvider {
	return &fakeProvider{
		zones:   []model.Zone{{ID: "zone-1", Name: zoneName}},
		records: map[string][]provider.Record{"zone-1": {}},
	}
}

func (f *fakeProvider) Zones(ctx context.Context) ([]model.Zone, error) { return f.zones, nil }

func (f *fakeProvider) Records(ctx context.Context, zone model.Zone, types []model.RecordType) ([]provider.Record, error) {
	wanted := make(map[model.RecordType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []provider.Record
	for _, r := range f.records[zone.ID] {
		if len(wanted) == 0 || wanted[r.Type] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeProvider) Create(ctx context.Context, zone model.Zone, rec provider.Record) (string, error) {
	f.nextID++
	rec.ID = "rec-" + string(rune('0'+f.nextID))
	rec.ZoneID = zone.ID
	f.records[zone.ID] = append(f.records[zone.ID], rec)
	return rec.ID, nil
}

func (f *fakeProvider) Update(ctx context.Context, zone model.Zone, id string, rec provider.Record) error {
	for i, r := range f.records[zone.ID] {
		if r.ID == id {
			rec.ID = id
			rec.ZoneID = zone.ID
			f.records[zone.ID][i] = rec
			return nil
		}
	}
	return nil
}

func (f *fakeProvider) Delete(ctx context.Context, zone model.Zone, id string) error {
	recs := f.records[zone.ID]
	for i, r := range recs {
		if r.ID == id {
			f.records[zone.ID] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return nil
}

func testConfig() Config {
	return Config{TXTPrefix: "sherpa-dns-", OwnerID: "default", WildcardReplacement: "star"}
}

func TestApplyCreateWritesPrimaryThenSidecar(t *testing.T) {
	fp := newFakeProvider("example.com")
	r := New(fp, testConfig(), logr.Discard())

	plan := model.Plan{Creates: []model.Endpoint{
		{DNSName: "app.example.com", RecordType: model.RecordTypeA, Targets: []string{"10.0.0.5"}, TTL: model.AutoTTL},
	}}

	errs := r.Apply(context.Background(), plan)
	if len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}

	records := fp.records["zone-1"]
	var sawA, sawTXT bool
	for _, rec := range records {
		if rec.Type == model.RecordTypeA && rec.Name == "app.example.com" {
			sawA = true
		}
		if rec.Type == model.RecordTypeTXT && rec.Name == "sherpa-dns-app.example.com" {
			sawTXT = true
			if !sawA {
				t.Errorf("sidecar written before the primary A record: %+v", records)
			}
			if rec.Content != "heritage=sherpa-dns,owner=default,type=A" {
				t.Errorf("sidecar content = %q", rec.Content)
			}
		}
	}
	if !sawA || !sawTXT {
		t.Errorf("records = %+v, want both A and TXT sidecar", records)
	}
}

func TestOwnedSkipsRecordWithoutSidecar(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-1", Name: "foo.example.com", Type: model.RecordTypeA, Content: "1.2.3.4"},
	}
	r := New(fp, testConfig(), logr.Discard())

	owned, err := r.Owned(context.Background(), nil)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("Owned() = %+v, want empty (foreign record with no sidecar)", owned)
	}
}

func TestOwnedPairsPrimaryWithMatchingSidecar(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-1", Name: "app.example.com", Type: model.RecordTypeA, Content: "10.0.0.5", TTL: model.AutoTTL},
		{ID: "rec-2", Name: "sherpa-dns-app.example.com", Type: model.RecordTypeTXT, Content: "heritage=sherpa-dns,owner=default,type=A"},
	}
	r := New(fp, testConfig(), logr.Discard())

	owned, err := r.Owned(context.Background(), nil)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 1 || owned[0].DNSName != "app.example.com" {
		t.Fatalf("Owned() = %+v, want [app.example.com]", owned)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	fp := newFakeProvider("example.com")
	cfg := testConfig()
	cfg.EncryptTXT = true
	cfg.EncryptionKey = "correct horse battery staple"
	r := New(fp, cfg, logr.Discard())

	plan := model.Plan{Creates: []model.Endpoint{
		{DNSName: "secret.example.com", RecordType: model.RecordTypeA, Targets: []string{"10.0.0.9"}, TTL: model.AutoTTL},
	}}
	if errs := r.Apply(context.Background(), plan); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}

	owned, err := r.Owned(context.Background(), nil)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 1 || owned[0].DNSName != "secret.example.com" {
		t.Fatalf("Owned() = %+v, want round-tripped secret.example.com", owned)
	}
}

func TestOwnedTreatsUndecryptableSidecarAsForeign(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-1", Name: "app.example.com", Type: model.RecordTypeA, Content: "10.0.0.5"},
		{ID: "rec-2", Name: "sherpa-dns-app.example.com", Type: model.RecordTypeTXT, Content: "not-encrypted-garbage"},
	}
	cfg := testConfig()
	cfg.EncryptTXT = true
	cfg.EncryptionKey = "some-passphrase"
	r := New(fp, cfg, logr.Discard())

	owned, err := r.Owned(context.Background(), nil)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("Owned() = %+v, want empty: undecryptable sidecar must be treated as foreign", owned)
	}
}

func TestOwnedDeletesOrphanSidecar(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-2", Name: "sherpa-dns-gone.example.com", Type: model.RecordTypeTXT, Content: "heritage=sherpa-dns,owner=default,type=A"},
	}
	r := New(fp, testConfig(), logr.Discard())

	owned, err := r.Owned(context.Background(), nil)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("Owned() = %+v, want empty: no primary exists", owned)
	}
	if len(fp.records["zone-1"]) != 0 {
		t.Errorf("records = %+v, want the orphan sidecar garbage-collected", fp.records["zone-1"])
	}
}

func TestOwnedLeavesForeignOrphanSidecarAlone(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-2", Name: "sherpa-dns-gone.example.com", Type: model.RecordTypeTXT, Content: "heritage=sherpa-dns,owner=someone-else,type=A"},
	}
	r := New(fp, testConfig(), logr.Discard())

	if _, err := r.Owned(context.Background(), nil); err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(fp.records["zone-1"]) != 1 {
		t.Errorf("records = %+v, want the foreign sidecar left untouched", fp.records["zone-1"])
	}
}

func TestOwnedResidecarsOrphanPrimaryMatchingDesired(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-1", Name: "app.example.com", Type: model.RecordTypeA, Content: "10.0.0.5", TTL: model.AutoTTL},
	}
	r := New(fp, testConfig(), logr.Discard())

	desired := []model.Endpoint{
		{DNSName: "app.example.com", RecordType: model.RecordTypeA, Targets: []string{"10.0.0.5"}, TTL: model.AutoTTL},
	}

	owned, err := r.Owned(context.Background(), desired)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 1 || owned[0].DNSName != "app.example.com" {
		t.Fatalf("Owned() = %+v, want the orphan primary re-sidecared and returned", owned)
	}

	var sawSidecar bool
	for _, rec := range fp.records["zone-1"] {
		if rec.Type == model.RecordTypeTXT && rec.Name == "sherpa-dns-app.example.com" {
			sawSidecar = true
			if rec.Content != "heritage=sherpa-dns,owner=default,type=A" {
				t.Errorf("sidecar content = %q", rec.Content)
			}
		}
	}
	if !sawSidecar {
		t.Errorf("records = %+v, want a new sidecar written", fp.records["zone-1"])
	}
}

func TestOwnedLeavesOrphanPrimaryAloneWhenNotDesired(t *testing.T) {
	fp := newFakeProvider("example.com")
	fp.records["zone-1"] = []provider.Record{
		{ID: "rec-1", Name: "app.example.com", Type: model.RecordTypeA, Content: "10.0.0.5", TTL: model.AutoTTL},
	}
	r := New(fp, testConfig(), logr.Discard())

	owned, err := r.Owned(context.Background(), nil)
	if err != nil {
		t.Fatalf("Owned() error = %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("Owned() = %+v, want empty: orphan primary does not match any desired endpoint", owned)
	}
	if len(fp.records["zone-1"]) != 1 {
		t.Errorf("records = %+v, want the orphan primary left untouched", fp.records["zone-1"])
	}
}

func TestWildcardSidecarName(t *testing.T) {
	fp := newFakeProvider("example.com")
	r := New(fp, testConfig(), logr.Discard())

	plan := model.Plan{Creates: []model.Endpoint{
		{DNSName: "*.lab.example.com", RecordType: model.RecordTypeA, Targets: []string{"192.168.1.1"}, TTL: model.AutoTTL},
	}}
	if errs := r.Apply(context.Background(), plan); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}

	var sawWildcardSidecar bool
	for _, rec := range fp.records["zone-1"] {
		if rec.Type == model.RecordTypeTXT && rec.Name == "sherpa-dns-star.lab.example.com" {
			sawWildcardSidecar = true
		}
	}
	if !sawWildcardSidecar {
		t.Errorf("records = %+v, want sidecar sherpa-dns-star.lab.example.com", fp.records["zone-1"])
	}
}
