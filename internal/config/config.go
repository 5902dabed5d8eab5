// Package config loads the YAML configuration file described in spec.md
// §6, with ${NAME} / ${NAME:-default} environment-variable interpolation
// applied before parsing. Grounded on the teacher's internal/config
// package: a LoadXxx(path) (*Xxx, error) function reading
// go.yaml.in/yaml/v3 into a struct tagged with `yaml:"..."`.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/stedrow/sherpa-dns/internal/durationutil"
)

// Config is the root of the configuration file.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Provider   ProviderConfig   `yaml:"provider"`
	Registry   RegistryConfig   `yaml:"registry"`
	Controller ControllerConfig `yaml:"controller"`
	Domains    DomainsConfig    `yaml:"domains"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type SourceConfig struct {
	LabelPrefix string `yaml:"label_prefix"`
	LabelFilter string `yaml:"label_filter"`

	// ProxiedByDefault is not itself a YAML key: it is copied from
	// provider.cloudflare.proxied_by_default by Load, so the Source (which
	// decides each endpoint's Proxied value when a container has no
	// sherpa.dns/proxied label) doesn't need to know which provider is active.
	ProxiedByDefault bool `yaml:"-"`
}

type ProviderConfig struct {
	Name       string                   `yaml:"name"`
	Cloudflare CloudflareProviderConfig `yaml:"cloudflare"`
}

type CloudflareProviderConfig struct {
	APIToken         string `yaml:"api_token"`
	ProxiedByDefault bool   `yaml:"proxied_by_default"`
}

type RegistryConfig struct {
	Type               string `yaml:"type"`
	TXTPrefix          string `yaml:"txt_prefix"`
	TXTOwnerID         string `yaml:"txt_owner_id"`
	TXTWildcardReplace string `yaml:"txt_wildcard_replacement"`
	EncryptTXT         bool   `yaml:"encrypt_txt"`
	EncryptionKey      string `yaml:"encryption_key"`
}

type ControllerConfig struct {
	Interval      string `yaml:"interval"`
	Once          bool   `yaml:"once"`
	DryRun        bool   `yaml:"dry_run"`
	CleanupOnStop bool   `yaml:"cleanup_on_stop"`
	CleanupDelay  string `yaml:"cleanup_delay"`
}

type DomainsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// defaults mirrors spec.md §6's default column. yaml.Unmarshal only
// overwrites fields present in the file, so starting from this struct
// and unmarshalling into it leaves every absent key at its default.
func defaults() Config {
	return Config{
		Source: SourceConfig{LabelPrefix: "sherpa.dns"},
		Provider: ProviderConfig{
			Name: "cloudflare",
		},
		Registry: RegistryConfig{
			Type:               "txt",
			TXTPrefix:          "sherpa-dns-",
			TXTOwnerID:         "default",
			TXTWildcardReplace: "star",
		},
		Controller: ControllerConfig{
			Interval:      "1m",
			CleanupOnStop: true,
			CleanupDelay:  "15m",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// envVarPattern matches ${NAME} and ${NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// interpolate substitutes ${NAME} with the environment variable's value
// and ${NAME:-default} with default when NAME is unset, before the YAML
// parser ever sees the file.
func interpolate(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		name := string(groups[1])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		return groups[3]
	})
}

// Load reads, interpolates, and parses the configuration file at path,
// then fills unset fields with spec.md §6's defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(interpolate(raw), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Source.ProxiedByDefault = cfg.Provider.Cloudflare.ProxiedByDefault

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Provider.Name == "cloudflare" && c.Provider.Cloudflare.APIToken == "" {
		return fmt.Errorf("provider.cloudflare.api_token is required")
	}
	if c.Registry.EncryptTXT && c.Registry.EncryptionKey == "" {
		return fmt.Errorf("registry.encryption_key is required when registry.encrypt_txt is true")
	}
	if _, err := c.Interval(); err != nil {
		return fmt.Errorf("controller.interval: %w", err)
	}
	if _, err := c.CleanupDelay(); err != nil {
		return fmt.Errorf("controller.cleanup_delay: %w", err)
	}
	return nil
}

// Interval parses controller.interval.
func (c *Config) Interval() (time.Duration, error) {
	return durationutil.Parse(c.Controller.Interval)
}

// CleanupDelay parses controller.cleanup_delay.
func (c *Config) CleanupDelay() (time.Duration, error) {
	return durationutil.Parse(c.Controller.CleanupDelay)
}
