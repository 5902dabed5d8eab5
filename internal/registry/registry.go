// Package registry implements the TXT-sidecar ownership overlay
// (spec.md §4.3): it turns an unowned key-value DNS zone into an owned
// subset without external storage, by pairing every managed A/CNAME
// record with a TXT record encoding ownership metadata.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"github.com/stedrow/sherpa-dns/internal/domainfilter"
	"github.com/stedrow/sherpa-dns/internal/model"
	"github.com/stedrow/sherpa-dns/internal/provider"
)

// Config holds the registry.* settings from spec.md §6.
type Config struct {
	TXTPrefix           string
	OwnerID             string
	WildcardReplacement string
	EncryptTXT          bool
	EncryptionKey       string
}

// Registry overlays ownership metadata on top of a Provider.
type Registry struct {
	provider provider.Provider
	cfg      Config
	log      logr.Logger
}

// New wraps p with the ownership overlay described by cfg.
func New(p provider.Provider, cfg Config, log logr.Logger) *Registry {
	return &Registry{provider: p, cfg: cfg, log: log}
}

// primaryRecords groups fanned-out A records and bare CNAME records by
// their (name, type) key, recording their provider record IDs so Apply
// can target them individually.
type primaryRecords struct {
	endpoint model.Endpoint
	ids      []string
}

// Owned lists every record this instance may mutate: a primary A/CNAME
// record pairs with a TXT sidecar that decodes to heritage=sherpa-dns and
// an owner matching cfg.OwnerID. Everything else is foreign and is not
// returned, per spec.md §3 invariant 3.
//
// Owned also repairs the two stale states spec.md §3 invariant 2 and §4.3
// name: a sidecar whose primary has disappeared is an orphan sidecar and
// is deleted; a primary whose sidecar has disappeared is an orphan
// primary and is re-sidecared, but only when it matches one of desired's
// endpoints — an orphan primary with no match in desired is left alone,
// since there is no way to tell a record of ours that simply lost its
// sidecar from a genuinely foreign one.
func (r *Registry) Owned(ctx context.Context, desired []model.Endpoint) ([]model.Endpoint, error) {
	zones, err := r.provider.Zones(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list zones: %w", err)
	}

	expected := make(map[model.Key]bool, len(desired))
	for _, e := range desired {
		expected[e.Key()] = true
	}

	var owned []model.Endpoint
	for _, zone := range zones {
		records, err := r.provider.Records(ctx, zone, nil)
		if err != nil {
			return nil, fmt.Errorf("registry: list records in zone %s: %w", zone.Name, err)
		}

		primaries := make(map[string]*primaryRecords)
		sidecars := make(map[string]provider.Record) // sidecar name -> TXT record

		for _, rec := range records {
			switch rec.Type {
			case model.RecordTypeTXT:
				sidecars[rec.Name] = rec
			case model.RecordTypeA, model.RecordTypeCNAME:
				key := rec.Name + "|" + string(rec.Type)
				p, ok := primaries[key]
				if !ok {
					p = &primaryRecords{endpoint: model.Endpoint{
						DNSName:    rec.Name,
						RecordType: rec.Type,
						TTL:        rec.TTL,
						Proxied:    rec.Proxied,
					}}
					primaries[key] = p
				}
				p.endpoint.Targets = append(p.endpoint.Targets, rec.Content)
				p.ids = append(p.ids, rec.ID)
			}
		}

		matched := make(map[string]bool, len(sidecars))

		for _, p := range primaries {
			name := sidecarName(p.endpoint.DNSName, r.cfg.TXTPrefix, r.cfg.WildcardReplacement)
			sidecar, ok := sidecars[name]
			if !ok {
				if !expected[p.endpoint.Key()] {
					continue
				}
				e, repairErr := r.residecar(ctx, zone, p.endpoint, name)
				if repairErr != nil {
					r.log.Error(repairErr, "re-sidecaring orphan primary failed", "name", p.endpoint.DNSName)
					continue
				}
				owned = append(owned, e)
				continue
			}
			matched[name] = true

			values, decErr := r.decodeSidecar(sidecar.Content)
			if decErr != nil {
				r.log.Info("sidecar present but undecryptable, treating record as foreign",
					"name", p.endpoint.DNSName, "sidecar", name)
				continue
			}
			if values == nil || values["owner"] != r.cfg.OwnerID {
				continue
			}
			e := p.endpoint
			e.OwnerID = values["owner"]
			owned = append(owned, e)
		}

		for name, sidecar := range sidecars {
			if matched[name] {
				continue
			}
			values, decErr := r.decodeSidecar(sidecar.Content)
			if decErr != nil {
				continue // can't tell whose it is; leave alone
			}
			if values == nil || values["owner"] != r.cfg.OwnerID {
				continue // not ours to garbage-collect
			}
			if err := r.provider.Delete(ctx, zone, sidecar.ID); err != nil {
				r.log.Error(err, "deleting orphan sidecar failed", "name", name)
				continue
			}
			r.log.Info("deleted orphan sidecar", "name", name)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].DNSName != owned[j].DNSName {
			return owned[i].DNSName < owned[j].DNSName
		}
		return owned[i].RecordType < owned[j].RecordType
	})
	return owned, nil
}

// residecar writes the missing TXT sidecar for an orphan primary that
// matches a desired endpoint, and returns the now-owned endpoint.
func (r *Registry) residecar(ctx context.Context, zone model.Zone, e model.Endpoint, sidecarRecordName string) (model.Endpoint, error) {
	content, err := r.encodeSidecar(e)
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("encode sidecar: %w", err)
	}
	if _, err := r.provider.Create(ctx, zone, provider.Record{
		Name: sidecarRecordName, Type: model.RecordTypeTXT, Content: content, TTL: model.AutoTTL,
	}); err != nil {
		return model.Endpoint{}, fmt.Errorf("create sidecar: %w", err)
	}
	r.log.Info("re-sidecared orphan primary", "name", e.DNSName)
	e.OwnerID = r.cfg.OwnerID
	return e, nil
}

// decodeSidecar returns the parsed key-value map for wire, decrypting
// first if cfg.EncryptTXT is set. A decrypt failure is returned as an
// error distinct from "absent heritage token", so Owned can log which
// case it hit.
func (r *Registry) decodeSidecar(wire string) (map[string]string, error) {
	content := wire
	if r.cfg.EncryptTXT {
		plain, err := decrypt(r.cfg.EncryptionKey, wire)
		if err != nil {
			return nil, err
		}
		content = plain
	}
	return parseSidecarContent(content), nil
}

// encodeSidecar builds the on-wire TXT content for an owned endpoint.
func (r *Registry) encodeSidecar(e model.Endpoint) (string, error) {
	plain := sidecarContent(r.cfg.OwnerID, string(e.RecordType))
	if !r.cfg.EncryptTXT {
		return plain, nil
	}
	return encrypt(r.cfg.EncryptionKey, plain)
}

// Apply executes plan against the underlying provider, writing the
// matching sidecar mutation alongside each primary mutation per spec.md
// §4.3: Create writes A/CNAME then TXT; Update mutates A/CNAME only;
// Delete removes A/CNAME then TXT. Per-change failures are recorded and
// do not abort the remaining changes in the plan (spec.md §7
// propagation rule).
func (r *Registry) Apply(ctx context.Context, plan model.Plan) []error {
	zones, err := r.provider.Zones(ctx)
	if err != nil {
		return []error{fmt.Errorf("registry: list zones: %w", err)}
	}

	zoneByName := make(map[string]model.Zone, len(zones))
	for _, z := range zones {
		zoneByName[z.Name] = z
	}
	zoneIndex := make(map[string]string, len(zones))
	for _, z := range zones {
		zoneIndex[z.Name] = z.ID
	}

	var errs []error
	resolveZone := func(dnsName string) (model.Zone, bool) {
		_, name, ok := domainfilter.ZoneFor(dnsName, zoneIndex)
		if !ok {
			return model.Zone{}, false
		}
		return zoneByName[name], true
	}

	for _, e := range plan.Creates {
		if err := r.applyCreate(ctx, e, resolveZone); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range plan.Updates {
		if err := r.applyUpdate(ctx, e, resolveZone); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range plan.Deletes {
		if err := r.applyDelete(ctx, e, resolveZone); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Registry) applyCreate(ctx context.Context, e model.Endpoint, resolveZone func(string) (model.Zone, bool)) error {
	zone, ok := resolveZone(e.DNSName)
	if !ok {
		return fmt.Errorf("registry: create %s: no managed zone contains this name", e.DNSName)
	}

	for _, target := range e.Targets {
		_, err := r.provider.Create(ctx, zone, provider.Record{
			Name: e.DNSName, Type: e.RecordType, Content: target, TTL: e.TTL, Proxied: e.Proxied,
		})
		if err != nil {
			return fmt.Errorf("registry: create %s %s: %w", e.DNSName, e.RecordType, err)
		}
	}

	content, err := r.encodeSidecar(e)
	if err != nil {
		return fmt.Errorf("registry: encode sidecar for %s: %w", e.DNSName, err)
	}
	name := sidecarName(e.DNSName, r.cfg.TXTPrefix, r.cfg.WildcardReplacement)
	if _, err := r.provider.Create(ctx, zone, provider.Record{
		Name: name, Type: model.RecordTypeTXT, Content: content, TTL: model.AutoTTL,
	}); err != nil {
		return fmt.Errorf("registry: create sidecar for %s: %w", e.DNSName, err)
	}
	return nil
}

// applyUpdate replaces the primary record(s) for e. Since fan-out means
// an A endpoint may back multiple provider records, and targets can
// change count, it pairs the existing records with e's targets by
// position: the i-th existing record is updated in place to the i-th
// target, extra targets are created, and leftover records are deleted.
// The sidecar is untouched per spec.md
// §4.3 ("mutate A/CNAME only; re-write if type changed", and type never
// changes within an Update since the key includes record_type).
func (r *Registry) applyUpdate(ctx context.Context, e model.Endpoint, resolveZone func(string) (model.Zone, bool)) error {
	zone, ok := resolveZone(e.DNSName)
	if !ok {
		return fmt.Errorf("registry: update %s: no managed zone contains this name", e.DNSName)
	}

	existing, err := r.provider.Records(ctx, zone, []model.RecordType{e.RecordType})
	if err != nil {
		return fmt.Errorf("registry: update %s: list existing records: %w", e.DNSName, err)
	}

	var ids []string
	for _, rec := range existing {
		if rec.Name == e.DNSName {
			ids = append(ids, rec.ID)
		}
	}

	for i, target := range e.Targets {
		rec := provider.Record{Name: e.DNSName, Type: e.RecordType, Content: target, TTL: e.TTL, Proxied: e.Proxied}
		if i < len(ids) {
			if err := r.provider.Update(ctx, zone, ids[i], rec); err != nil {
				return fmt.Errorf("registry: update %s %s: %w", e.DNSName, e.RecordType, err)
			}
			continue
		}
		if _, err := r.provider.Create(ctx, zone, rec); err != nil {
			return fmt.Errorf("registry: create extra target for %s %s: %w", e.DNSName, e.RecordType, err)
		}
	}
	for i := len(e.Targets); i < len(ids); i++ {
		if err := r.provider.Delete(ctx, zone, ids[i]); err != nil {
			return fmt.Errorf("registry: delete stale target for %s %s: %w", e.DNSName, e.RecordType, err)
		}
	}
	return nil
}

func (r *Registry) applyDelete(ctx context.Context, e model.Endpoint, resolveZone func(string) (model.Zone, bool)) error {
	zone, ok := resolveZone(e.DNSName)
	if !ok {
		return fmt.Errorf("registry: delete %s: no managed zone contains this name", e.DNSName)
	}

	existing, err := r.provider.Records(ctx, zone, []model.RecordType{e.RecordType})
	if err != nil {
		return fmt.Errorf("registry: delete %s: list existing records: %w", e.DNSName, err)
	}
	for _, rec := range existing {
		if rec.Name != e.DNSName {
			continue
		}
		if err := r.provider.Delete(ctx, zone, rec.ID); err != nil {
			return fmt.Errorf("registry: delete %s %s: %w", e.DNSName, e.RecordType, err)
		}
	}

	sidecar := sidecarName(e.DNSName, r.cfg.TXTPrefix, r.cfg.WildcardReplacement)
	txts, err := r.provider.Records(ctx, zone, []model.RecordType{model.RecordTypeTXT})
	if err != nil {
		return fmt.Errorf("registry: delete sidecar for %s: list TXT records: %w", e.DNSName, err)
	}
	for _, rec := range txts {
		if rec.Name != sidecar {
			continue
		}
		if err := r.provider.Delete(ctx, zone, rec.ID); err != nil {
			return fmt.Errorf("registry: delete sidecar for %s: %w", e.DNSName, err)
		}
	}
	return nil
}
