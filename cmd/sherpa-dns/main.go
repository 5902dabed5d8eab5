package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stedrow/sherpa-dns/internal/cleanup"
	"github.com/stedrow/sherpa-dns/internal/config"
	"github.com/stedrow/sherpa-dns/internal/controller"
	"github.com/stedrow/sherpa-dns/internal/health"
	"github.com/stedrow/sherpa-dns/internal/provider"
	_ "github.com/stedrow/sherpa-dns/internal/provider/providers"
	"github.com/stedrow/sherpa-dns/internal/registry"
	"github.com/stedrow/sherpa-dns/internal/source"
	"github.com/stedrow/sherpa-dns/internal/source/docker"
)

// Exit codes per spec.md §6: 0 clean shutdown/once success, 2 config
// errors, 3 unrecoverable provider auth failure, 4 unrecoverable runtime
// connection failure.
const (
	exitOK             = 0
	exitConfigError    = 2
	exitProviderAuth   = 3
	exitRuntimeConnect = 4
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the Sherpa-DNS configuration file")
	metricsAddr := flag.String("metrics-bind-address", ":9090", "address the /metrics and /health endpoints bind to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitConfigError)
	}

	log := newLogger(cfg.Logging.Level)
	log.Info("starting sherpa-dns", "version", Version)

	code := run(log, cfg, *metricsAddr)
	os.Exit(code)
}

func newLogger(level string) logr.Logger {
	zapLevel := zapcore.InfoLevel
	_ = zapLevel.UnmarshalText([]byte(level))

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapLog, err := zapCfg.Build()
	if err != nil {
		zapLog = zap.NewExample()
	}
	return zapr.NewLogger(zapLog)
}

func run(log logr.Logger, cfg *config.Config, metricsAddr string) int {
	interval, err := cfg.Interval()
	if err != nil {
		log.Error(err, "invalid controller.interval")
		return exitConfigError
	}
	cleanupDelay, err := cfg.CleanupDelay()
	if err != nil {
		log.Error(err, "invalid controller.cleanup_delay")
		return exitConfigError
	}

	src, err := newSource(log, cfg)
	if err != nil {
		log.Error(err, "unable to construct source")
		return exitRuntimeConnect
	}

	settings := providerSettings(cfg)
	prov, err := provider.New(cfg.Provider.Name, log.WithName("provider"), settings)
	if err != nil {
		log.Error(err, "unable to construct DNS provider")
		return exitProviderAuth
	}

	reg := registry.New(prov, registry.Config{
		TXTPrefix:           cfg.Registry.TXTPrefix,
		OwnerID:             cfg.Registry.TXTOwnerID,
		WildcardReplacement: cfg.Registry.TXTWildcardReplace,
		EncryptTXT:          cfg.Registry.EncryptTXT,
		EncryptionKey:       cfg.Registry.EncryptionKey,
	}, log.WithName("registry"))

	scheduler := cleanup.New()

	metrics, promReg := health.NewMetrics(func() float64 { return float64(scheduler.Pending()) })
	healthServer := health.NewServer(metricsAddr, promReg, log.WithName("health"))

	ctrl := controller.New(src, reg, scheduler, controller.Config{
		Interval:      interval,
		Once:          cfg.Controller.Once,
		DryRun:        cfg.Controller.DryRun,
		CleanupOnStop: cfg.Controller.CleanupOnStop,
		CleanupDelay:  cleanupDelay,
	}, metrics, healthServer, log.WithName("controller"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthErrs := make(chan error, 1)
	go func() { healthErrs <- healthServer.Run(ctx) }()

	if err := ctrl.Run(ctx); err != nil {
		log.Error(err, "controller exited with error")
		return exitRuntimeConnect
	}

	stop()
	if err := <-healthErrs; err != nil {
		log.Error(err, "health server shutdown error")
	}
	return exitOK
}

func newSource(log logr.Logger, cfg *config.Config) (source.Source, error) {
	return docker.New(log.WithName("source.docker"), docker.Config{
		LabelPrefix:      cfg.Source.LabelPrefix,
		LabelFilter:      cfg.Source.LabelFilter,
		ProxiedByDefault: cfg.Source.ProxiedByDefault,
	})
}

// providerSettings flattens the typed provider config section into the
// string map internal/provider.Factory expects, plus the domains.*
// include/exclude lists every provider's domainfilter.Filter consumes.
// proxied_by_default is not among them: it is a Source-side decision
// (see config.SourceConfig.ProxiedByDefault), not something the provider
// itself ever reads.
func providerSettings(cfg *config.Config) map[string]string {
	settings := map[string]string{
		"domains_include": strings.Join(cfg.Domains.Include, ","),
		"domains_exclude": strings.Join(cfg.Domains.Exclude, ","),
	}
	if cfg.Provider.Name == "cloudflare" {
		settings["api_token"] = cfg.Provider.Cloudflare.APIToken
	}
	return settings
}
