// Package health serves the /health, /healthz, and /metrics endpoints
// from spec.md §6, on a plain net/http server. Grounded on the
// teacher's separate health/metrics bind-address pattern (itself
// sourced from controller-runtime's manager options), reimplemented
// directly on net/http since Sherpa-DNS is not a controller-runtime
// manager: there is no Kubernetes API server to reconcile against, only
// the ambient "separate health and metrics endpoints" shape is kept.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters spec.md §6 names.
type Metrics struct {
	ReconciliationsTotal prometheus.Counter
	ChangesTotal         *prometheus.CounterVec
	ProviderErrorsTotal  prometheus.Counter
	CleanupSchedulerSize prometheus.GaugeFunc
}

// NewMetrics registers the four named counters against a fresh registry.
// schedulerSize is polled on every scrape, not cached, so it always
// reflects the live pending-deletion count.
func NewMetrics(schedulerSize func() float64) (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ReconciliationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sherpa_dns_reconciliations_total",
			Help: "Total number of reconciliation ticks run.",
		}),
		ChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sherpa_dns_changes_total",
			Help: "Total number of changes applied, by kind.",
		}, []string{"kind"}),
		ProviderErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sherpa_dns_provider_errors_total",
			Help: "Total number of provider call errors.",
		}),
		CleanupSchedulerSize: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sherpa_dns_cleanup_scheduler_size",
			Help: "Number of endpoints currently pending delayed deletion.",
		}, schedulerSize),
	}

	reg.MustRegister(m.ReconciliationsTotal, m.ChangesTotal, m.ProviderErrorsTotal, m.CleanupSchedulerSize)
	return m, reg
}

// Server serves the health and metrics endpoints. The zero value is not
// usable; construct with NewServer.
type Server struct {
	httpServer *http.Server
	log        logr.Logger

	lastTickOK  atomic.Bool
	eventsAlive atomic.Bool
}

// NewServer builds a health/metrics server bound to addr. Call
// MarkTickComplete and MarkEventsAlive from the Controller to keep
// /health accurate.
func NewServer(addr string, reg *prometheus.Registry, log logr.Logger) *Server {
	s := &Server{log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.serveHealth)
	mux.HandleFunc("/healthz", s.serveHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// MarkTickComplete records that the most recent reconciliation tick
// finished (successfully or not — spec.md §6 ties /health only to "the
// last tick completed", not to whether it found changes to apply).
func (s *Server) MarkTickComplete() { s.lastTickOK.Store(true) }

// MarkEventsAlive records whether the Source's event subscription is
// currently alive.
func (s *Server) MarkEventsAlive(alive bool) { s.eventsAlive.Store(alive) }

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.lastTickOK.Load() && s.eventsAlive.Load()
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]bool{
		"tick_complete": s.lastTickOK.Load(),
		"events_alive":  s.eventsAlive.Load(),
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Info("health server shutdown error", "error", err.Error())
		}
		return nil
	case err := <-errCh:
		return err
	}
}
