// Package docker implements source.Source against a Docker-compatible
// container runtime over its Engine API, per spec.md §4.1/§6. Grounded on
// original_source/source/docker_container.py for the label schema and
// network-selection heuristic, reimplemented on
// github.com/docker/docker/client — the standard Go SDK for the Docker
// Engine API, and the one domain dependency with no precedent elsewhere
// in the retrieval pack (see DESIGN.md).
package docker

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/go-logr/logr"

	"github.com/stedrow/sherpa-dns/internal/model"
)

// Config holds the source.* settings from spec.md §6.
type Config struct {
	LabelPrefix      string
	LabelFilter      string // "" (no filter), "KEY", or "KEY=VALUE"
	ProxiedByDefault bool
}

// Source lists containers and watches lifecycle events on a Docker
// Engine API endpoint.
type Source struct {
	cli *client.Client
	cfg Config
	log logr.Logger
}

// New connects to the Docker daemon using the standard environment
// variables (DOCKER_HOST, DOCKER_CERT_PATH, ...), negotiating the API
// version, the same "try the environment first" approach as the
// original's docker.from_env().
func New(log logr.Logger, cfg Config) (*Source, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: connect to daemon: %w", err)
	}
	if cfg.LabelPrefix == "" {
		cfg.LabelPrefix = "sherpa.dns"
	}
	return &Source{cli: cli, cfg: cfg, log: log}, nil
}

// Snapshot lists running containers, applies the label filter, and
// projects each container's labels into zero or more endpoints.
func (s *Source) Snapshot(ctx context.Context) ([]model.Endpoint, error) {
	containers, err := s.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: list containers: %w", err)
	}

	byKey := make(map[model.Key]model.Endpoint)
	conflicted := make(map[model.Key]bool)

	for _, c := range containers {
		if !s.matchesFilter(c.Labels) {
			continue
		}
		name := containerName(c.Names)
		for _, e := range s.endpointsFromContainer(c, name) {
			key := e.Key()
			if existing, ok := byKey[key]; ok {
				if !sameComparable(existing, e) {
					conflicted[key] = true
					s.log.Error(nil, "conflicting desired endpoints for same key, dropping both",
						"dns_name", e.DNSName, "record_type", e.RecordType)
				}
				continue
			}
			byKey[key] = e
		}
	}

	endpoints := make([]model.Endpoint, 0, len(byKey))
	for key, e := range byKey {
		if conflicted[key] {
			continue
		}
		endpoints = append(endpoints, e)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].DNSName != endpoints[j].DNSName {
			return endpoints[i].DNSName < endpoints[j].DNSName
		}
		return endpoints[i].RecordType < endpoints[j].RecordType
	})
	return endpoints, nil
}

func sameComparable(a, b model.Endpoint) bool {
	at, attl, ap := a.Comparable()
	bt, bttl, bp := b.Comparable()
	return at == bt && attl == bttl && ap == bp
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

// matchesFilter implements the "KEY" presence / "KEY=VALUE" match filter
// from spec.md §4.1.
func (s *Source) matchesFilter(labels map[string]string) bool {
	if s.cfg.LabelFilter == "" {
		return true
	}
	key, value, hasValue := strings.Cut(s.cfg.LabelFilter, "=")
	v, ok := labels[key]
	if !ok {
		return false
	}
	if !hasValue {
		return true
	}
	return v == value
}

// endpointsFromContainer projects one container's labels into zero or
// more endpoints, one per declared hostname (the bare hostname label, a
// comma-separated list, plus any hostname.<alias> labels, each
// independently overridable via <prefix>/<key>.<alias>).
func (s *Source) endpointsFromContainer(c container.Summary, containerName string) []model.Endpoint {
	var out []model.Endpoint
	for hostname, alias := range s.hostnamesFromLabels(c.Labels) {
		e, err := s.buildEndpoint(c, containerName, hostname, alias)
		if err != nil {
			s.log.Info("skipping invalid endpoint from labels", "container", containerName, "hostname", hostname, "error", err.Error())
			continue
		}
		out = append(out, e)
	}
	return out
}

// hostnamesFromLabels returns hostname -> alias. The bare hostname label
// (comma-separated) produces entries with alias "" (no per-alias
// overrides apply); hostname.<alias> labels each produce one entry keyed
// by their alias.
func (s *Source) hostnamesFromLabels(labels map[string]string) map[string]string {
	out := make(map[string]string)
	bareKey := s.cfg.LabelPrefix + "/hostname"
	if v, ok := labels[bareKey]; ok {
		for _, h := range strings.Split(v, ",") {
			h = strings.TrimSpace(h)
			if h != "" {
				out[h] = ""
			}
		}
	}
	aliasPrefix := bareKey + "."
	for k, v := range labels {
		alias, ok := strings.CutPrefix(k, aliasPrefix)
		if !ok || alias == "" {
			continue
		}
		h := strings.TrimSpace(v)
		if h != "" {
			out[h] = alias
		}
	}
	return out
}

// labelValue looks up <prefix>/<key>.<alias> first, falling back to the
// generic <prefix>/<key>. Grounded on the original's per-alias override
// resolution order.
func (s *Source) labelValue(labels map[string]string, key, alias string) (string, bool) {
	if alias != "" {
		if v, ok := labels[s.cfg.LabelPrefix+"/"+key+"."+alias]; ok {
			return v, true
		}
	}
	v, ok := labels[s.cfg.LabelPrefix+"/"+key]
	return v, ok
}

func (s *Source) buildEndpoint(c container.Summary, containerName, hostname, alias string) (model.Endpoint, error) {
	recordType := model.RecordTypeA
	if v, ok := s.labelValue(c.Labels, "type", alias); ok {
		switch strings.ToUpper(v) {
		case "A":
			recordType = model.RecordTypeA
		case "CNAME":
			recordType = model.RecordTypeCNAME
		default:
			return model.Endpoint{}, fmt.Errorf("invalid record type %q", v)
		}
	}

	ttl := model.AutoTTL
	if v, ok := s.labelValue(c.Labels, "ttl", alias); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return model.Endpoint{}, fmt.Errorf("invalid ttl %q", v)
		}
		ttl = n
	}

	proxied := s.cfg.ProxiedByDefault
	if v, ok := s.labelValue(c.Labels, "proxied", alias); ok {
		proxied = v == "true"
	}

	target, ok := s.labelValue(c.Labels, "target", alias)
	if !ok {
		var err error
		target, err = s.defaultTarget(c, containerName, recordType, alias)
		if err != nil {
			return model.Endpoint{}, err
		}
	} else if recordType == model.RecordTypeA {
		if ip := net.ParseIP(target); ip == nil || ip.To4() == nil {
			return model.Endpoint{}, fmt.Errorf("invalid A target %q: not an IPv4 address", target)
		}
	}

	if hostname == "" {
		return model.Endpoint{}, fmt.Errorf("empty hostname")
	}

	return model.Endpoint{
		DNSName:    strings.ToLower(hostname),
		RecordType: recordType,
		Targets:    []string{target},
		TTL:        ttl,
		Proxied:    proxied,
		SourceRef:  model.SourceRef{ContainerID: c.ID, ContainerName: containerName},
	}, nil
}

// defaultTarget picks the container's IP (for A records) or its name
// (for CNAME records) when no explicit target label is set. For A
// records on a container with multiple networks, it resolves the Open
// Question from spec.md §9: require an explicit sherpa.dns/network
// label; absent that, warn and fall back to the lexically-first network
// name, matching the original's behavior but now surfaced as a warning.
func (s *Source) defaultTarget(c container.Summary, containerName string, recordType model.RecordType, alias string) (string, error) {
	if recordType == model.RecordTypeCNAME {
		return containerName, nil
	}

	if c.NetworkSettings == nil || len(c.NetworkSettings.Networks) == 0 {
		return "", fmt.Errorf("container has no attached networks")
	}

	netName, ok := s.labelValue(c.Labels, "network", alias)
	if !ok {
		if len(c.NetworkSettings.Networks) == 1 {
			for n := range c.NetworkSettings.Networks {
				netName = n
			}
		} else {
			names := make([]string, 0, len(c.NetworkSettings.Networks))
			for n := range c.NetworkSettings.Networks {
				names = append(names, n)
			}
			sort.Strings(names)
			netName = names[0]
			s.log.Info("container has multiple networks and no sherpa.dns/network label, "+
				"falling back to lexically-first network", "container", containerName, "chosen_network", netName)
		}
	}

	ep, ok := c.NetworkSettings.Networks[netName]
	if !ok || ep.IPAddress == "" {
		return "", fmt.Errorf("network %q has no IPv4 address", netName)
	}
	return ep.IPAddress, nil
}

// Events subscribes to the daemon's event stream and coalesces container
// start/die/stop/kill events into a nudge channel: many events collapse
// into one pending signal via a buffered channel of size 1 plus a
// non-blocking send, so a burst of container churn produces at most one
// extra reconciliation.
func (s *Source) Events(ctx context.Context) (<-chan struct{}, error) {
	nudge := make(chan struct{}, 1)

	f := filters.NewArgs()
	f.Add("type", string(events.ContainerEventType))

	msgs, errs := s.cli.Events(ctx, events.ListOptions{Filters: f})

	go func() {
		defer close(nudge)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					return
				}
				if err != nil {
					s.log.Info("docker event stream error, event subscription ended", "error", err.Error())
					return
				}
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if !relevantAction(msg.Action) {
					continue
				}
				select {
				case nudge <- struct{}{}:
				default:
				}
			}
		}
	}()

	return nudge, nil
}

func relevantAction(action events.Action) bool {
	switch action {
	case events.ActionStart, events.ActionDie, events.ActionStop, events.ActionKill:
		return true
	default:
		return false
	}
}
