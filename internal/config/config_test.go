package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "provider:\n  cloudflare:\n    api_token: test-token\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.LabelPrefix != "sherpa.dns" {
		t.Errorf("Source.LabelPrefix = %q, want sherpa.dns", cfg.Source.LabelPrefix)
	}
	if cfg.Registry.TXTPrefix != "sherpa-dns-" {
		t.Errorf("Registry.TXTPrefix = %q, want sherpa-dns-", cfg.Registry.TXTPrefix)
	}
	if !cfg.Controller.CleanupOnStop {
		t.Error("Controller.CleanupOnStop should default to true")
	}
	if interval, err := cfg.Interval(); err != nil || interval != time.Minute {
		t.Errorf("Interval() = %v, %v, want 1m, nil", interval, err)
	}
}

func TestLoadRejectsMissingAPIToken(t *testing.T) {
	path := writeConfig(t, "provider:\n  name: cloudflare\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing provider.cloudflare.api_token")
	}
}

func TestLoadRejectsEncryptWithoutKey(t *testing.T) {
	path := writeConfig(t, "provider:\n  cloudflare:\n    api_token: t\nregistry:\n  encrypt_txt: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for encrypt_txt without encryption_key")
	}
}

func TestLoadInterpolatesEnvVars(t *testing.T) {
	t.Setenv("CF_TOKEN", "from-env")
	path := writeConfig(t, "provider:\n  cloudflare:\n    api_token: ${CF_TOKEN}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Cloudflare.APIToken != "from-env" {
		t.Errorf("APIToken = %q, want from-env", cfg.Provider.Cloudflare.APIToken)
	}
}

func TestLoadInterpolatesEnvVarDefault(t *testing.T) {
	path := writeConfig(t, "provider:\n  cloudflare:\n    api_token: ${CF_TOKEN_UNSET:-fallback-token}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Cloudflare.APIToken != "fallback-token" {
		t.Errorf("APIToken = %q, want fallback-token", cfg.Provider.Cloudflare.APIToken)
	}
}

func TestLoadCopiesProxiedByDefaultOntoSource(t *testing.T) {
	path := writeConfig(t, "provider:\n  cloudflare:\n    api_token: t\n    proxied_by_default: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Source.ProxiedByDefault {
		t.Error("Source.ProxiedByDefault should mirror provider.cloudflare.proxied_by_default")
	}
}

func TestLoadOverridesDefaultsExplicitly(t *testing.T) {
	path := writeConfig(t, "provider:\n  cloudflare:\n    api_token: t\ncontroller:\n  cleanup_on_stop: false\n  interval: 30s\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Controller.CleanupOnStop {
		t.Error("explicit cleanup_on_stop: false should not be overwritten by the default")
	}
	if interval, _ := cfg.Interval(); interval != 30*time.Second {
		t.Errorf("Interval() = %v, want 30s", interval)
	}
}
