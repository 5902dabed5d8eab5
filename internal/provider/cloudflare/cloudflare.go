// Package cloudflare implements provider.Provider against Cloudflare's
// DNS API v4 via github.com/cloudflare/cloudflare-go, the reference
// target spec.md §4.2 describes. Grounded on the teacher's
// internal/dns/opnsense package: an HTTP-client struct self-registered in
// init(), settings validated in New, every call wrapped and classified
// with fmt.Errorf("...: %w", err).
package cloudflare

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	cf "github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"github.com/stedrow/sherpa-dns/internal/domainfilter"
	"github.com/stedrow/sherpa-dns/internal/model"
	"github.com/stedrow/sherpa-dns/internal/provider"
)

// maxRateLimitAttempts bounds the bounded-exponential retry spec.md §7.4
// requires for 429 responses: once exhausted, the remaining attempt is
// left to the next tick rather than retried indefinitely within this one.
const maxRateLimitAttempts = 5

// withRateLimitRetry retries call while it fails with a RateLimited
// error, using a bounded exponential backoff; any other error aborts the
// retry immediately via backoff.Permanent.
func withRateLimitRetry(ctx context.Context, log logr.Logger, call func() error) error {
	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRateLimitAttempts-1), ctx)
	return backoff.Retry(func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		if !provider.IsRateLimited(err) {
			return backoff.Permanent(err)
		}
		log.Info("rate limited, backing off", "attempt", attempt)
		return err
	}, policy)
}

func init() {
	provider.Register("cloudflare", func(log logr.Logger, settings map[string]string) (provider.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements provider.Provider against Cloudflare's API.
type Provider struct {
	api         *cf.API
	filter      domainfilter.Filter
	callTimeout time.Duration
	log         logr.Logger
}

// Settings recognized: "api_token" (required), "domains_include"/
// "domains_exclude" (comma-separated pattern lists, set by the caller
// from the domains.* config section). The proxied-by-default decision
// belongs to the Source, not this provider: Create/Update always honor
// rec.Proxied as handed to them (lines below), so the default is applied
// once, where the endpoint is built.
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	token := settings["api_token"]
	if token == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_token'")
	}

	api, err := cf.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: build client: %w", err)
	}

	return &Provider{
		api:         api,
		filter:      domainfilter.New(splitCSV(settings["domains_include"]), splitCSV(settings["domains_exclude"])),
		callTimeout: 30 * time.Second,
		log:         log,
	}, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Zones lists the account's zones, restricted by the configured domain
// filter (spec.md §4.7).
func (p *Provider) Zones(ctx context.Context) ([]model.Zone, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	var raw cf.ZonesResponse
	err := withRateLimitRetry(ctx, p.log, func() error {
		var callErr error
		raw, callErr = p.api.ListZonesContext(ctx)
		if callErr != nil {
			return classifyErr(callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var zones []model.Zone
	for _, z := range raw.Result {
		if !p.filter.Match(z.Name) {
			continue
		}
		zones = append(zones, model.Zone{ID: z.ID, Name: z.Name})
	}
	return zones, nil
}

// Records lists records in zone, optionally restricted to types. With an
// empty types list every record, TXT included, is returned; the Registry
// is the layer that interprets TXT content as sidecars.
func (p *Provider) Records(ctx context.Context, zone model.Zone, types []model.RecordType) ([]provider.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	rc := cf.ZoneIdentifier(zone.ID)
	wanted := make(map[model.RecordType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var out []provider.Record
	page := 1
	for {
		params := cf.ListDNSRecordsParams{ResultInfo: cf.ResultInfo{Page: page, PerPage: 100}}
		var raw []cf.DNSRecord
		var resultInfo cf.ResultInfo
		err := withRateLimitRetry(ctx, p.log, func() error {
			var callErr error
			raw, resultInfo, callErr = p.api.ListDNSRecords(ctx, rc, params)
			if callErr != nil {
				return classifyErr(callErr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, r := range raw {
			rt := model.RecordType(r.Type)
			if len(wanted) > 0 && !wanted[rt] {
				continue
			}
			out = append(out, provider.Record{
				ID:      r.ID,
				ZoneID:  zone.ID,
				Name:    r.Name,
				Type:    rt,
				Content: r.Content,
				TTL:     r.TTL,
				Proxied: r.Proxied != nil && *r.Proxied,
			})
		}
		if page >= resultInfo.TotalPages {
			break
		}
		page++
	}
	return out, nil
}

func (p *Provider) Create(ctx context.Context, zone model.Zone, rec provider.Record) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	proxied := rec.Proxied
	params := cf.CreateDNSRecordParams{
		Type:    string(rec.Type),
		Name:    rec.Name,
		Content: rec.Content,
		TTL:     cloudflareTTL(rec.Type, rec.TTL),
		Proxied: &proxied,
	}
	var res cf.DNSRecord
	err := withRateLimitRetry(ctx, p.log, func() error {
		var callErr error
		res, callErr = p.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(zone.ID), params)
		if callErr != nil {
			return classifyErr(callErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	p.log.Info("created record", "name", rec.Name, "type", rec.Type, "id", res.ID)
	return res.ID, nil
}

func (p *Provider) Update(ctx context.Context, zone model.Zone, id string, rec provider.Record) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	proxied := rec.Proxied
	params := cf.UpdateDNSRecordParams{
		ID:      id,
		Type:    string(rec.Type),
		Name:    rec.Name,
		Content: rec.Content,
		TTL:     cloudflareTTL(rec.Type, rec.TTL),
		Proxied: &proxied,
	}
	err := withRateLimitRetry(ctx, p.log, func() error {
		_, callErr := p.api.UpdateDNSRecord(ctx, cf.ZoneIdentifier(zone.ID), params)
		if callErr != nil {
			return classifyErr(callErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.log.Info("updated record", "name", rec.Name, "type", rec.Type, "id", id)
	return nil
}

func (p *Provider) Delete(ctx context.Context, zone model.Zone, id string) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	err := withRateLimitRetry(ctx, p.log, func() error {
		if callErr := p.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(zone.ID), id); callErr != nil {
			return classifyErr(callErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.log.Info("deleted record", "id", id)
	return nil
}

// cloudflareTTL maps the model's "1 means auto" sentinel onto
// Cloudflare's own "1 means auto" TTL value, which happens to coincide;
// proxied records ignore TTL entirely and Cloudflare requires 1 for them.
func cloudflareTTL(t model.RecordType, ttl int) int {
	if ttl <= 0 {
		return model.AutoTTL
	}
	return ttl
}

// classifyErr maps a cloudflare-go error onto the provider taxonomy by
// inspecting the status code the client attaches to *cloudflare.Error.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var cfErr *cf.Error
	if ok := asCloudflareError(err, &cfErr); ok {
		return provider.ClassifyHTTPStatus(cfErr.StatusCode, err)
	}
	// No status code available (context deadline, DNS resolution
	// failure, connection refused): treat as transient per spec.md §7.2.
	return provider.Transient(err)
}

func asCloudflareError(err error, target **cf.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ce, ok := err.(*cf.Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
