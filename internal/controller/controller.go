// Package controller owns the reconciliation loop (spec.md §4.6):
// Source -> Planner -> Registry each tick, plus event-driven nudges and
// the delayed-cleanup scheduler. Grounded on the teacher's
// HTTPRouteReconciler: fields supplied once at construction (no
// globals), a logr.Logger threaded through, generalized from a per-object
// k8s Reconcile method to a tick-and-nudge loop, and from
// WithEventFilter(predicate.Funcs{...}) — collapsing many signals into
// one decision — to a select over a ticker, a nudge channel, and
// ctx.Done().
package controller

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/stedrow/sherpa-dns/internal/cleanup"
	"github.com/stedrow/sherpa-dns/internal/health"
	"github.com/stedrow/sherpa-dns/internal/model"
	"github.com/stedrow/sherpa-dns/internal/planner"
	"github.com/stedrow/sherpa-dns/internal/registry"
	"github.com/stedrow/sherpa-dns/internal/source"
)

// Config holds the controller.* settings from spec.md §6.
type Config struct {
	Interval      time.Duration
	Once          bool
	DryRun        bool
	CleanupOnStop bool
	CleanupDelay  time.Duration
}

// minInterTickDelay prevents event storms from driving back-to-back
// ticks, per spec.md §4.6.
const minInterTickDelay = 1 * time.Second

// Controller is constructed once, composition-rooted per spec.md §9:
// Provider leaf -> Registry owns Provider -> Controller owns Registry and
// Source, with no back-references. Cross-cutting concerns (logger,
// metrics) are injected rather than looked up globally.
type Controller struct {
	src       source.Source
	reg       *registry.Registry
	scheduler *cleanup.Scheduler
	cfg       Config
	log       logr.Logger
	metrics   *health.Metrics
	health    *health.Server
}

// New builds a Controller. The Source, Registry, CleanupScheduler,
// metrics, and health server are all constructed by the caller and
// handed in, establishing the cycle-free construction order spec.md §9
// mandates.
func New(src source.Source, reg *registry.Registry, scheduler *cleanup.Scheduler, cfg Config, metrics *health.Metrics, healthServer *health.Server, log logr.Logger) *Controller {
	return &Controller{src: src, reg: reg, scheduler: scheduler, cfg: cfg, metrics: metrics, health: healthServer, log: log}
}

// Run drives the reconciliation loop until ctx is cancelled, or once
// iff cfg.Once is set.
func (c *Controller) Run(ctx context.Context) error {
	nudges, err := c.src.Events(ctx)
	if err != nil {
		c.log.Error(err, "starting source event subscription failed, continuing without nudges")
		nudges = make(chan struct{})
	} else if c.health != nil {
		c.health.MarkEventsAlive(true)
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.tick(ctx)
	if c.cfg.Once {
		c.drainScheduler(ctx, time.Now().Add(365*24*time.Hour))
		return nil
	}

	var lastTick time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.runTickWithMinDelay(ctx, &lastTick)
		case _, ok := <-nudges:
			if !ok {
				if c.health != nil {
					c.health.MarkEventsAlive(false)
				}
				nudges = make(chan struct{})
				continue
			}
			c.runTickWithMinDelay(ctx, &lastTick)
		}
	}
}

func (c *Controller) runTickWithMinDelay(ctx context.Context, lastTick *time.Time) {
	if since := time.Since(*lastTick); since < minInterTickDelay {
		time.Sleep(minInterTickDelay - since)
	}
	*lastTick = time.Now()
	c.tick(ctx)
}

// tick implements the six steps of spec.md §4.6's loop, steps 2-5 (step
// 1, waiting, is the caller's select statement).
func (c *Controller) tick(ctx context.Context) {
	defer func() {
		if c.metrics != nil {
			c.metrics.ReconciliationsTotal.Inc()
		}
		if c.health != nil {
			c.health.MarkTickComplete()
		}
	}()

	desired, err := c.src.Snapshot(ctx)
	if err != nil {
		c.log.Error(err, "source snapshot failed, skipping this tick")
		return
	}

	current, err := c.reg.Owned(ctx, desired)
	if err != nil {
		c.log.Error(err, "registry read failed, skipping this tick")
		return
	}

	plan := planner.Plan(desired, current, planner.PolicySync)
	c.log.V(1).Info("computed plan", "creates", len(plan.Creates), "updates", len(plan.Updates), "deletes", len(plan.Deletes))

	desiredKeys := make(map[model.Key]bool, len(desired))
	for _, e := range desired {
		desiredKeys[e.Key()] = true
	}

	immediate := model.Plan{Creates: plan.Creates, Updates: plan.Updates}
	for _, d := range plan.Deletes {
		if !c.cfg.CleanupOnStop {
			immediate.Deletes = append(immediate.Deletes, d)
			continue
		}
		// Keep the first scheduled time: re-scheduling on every tick would
		// push the deletion back for as long as the endpoint stays absent.
		if !c.scheduler.Has(d.Key()) {
			c.scheduler.Schedule(d, time.Now().Add(c.cfg.CleanupDelay))
		}
	}
	for key := range desiredKeys {
		if c.scheduler.Has(key) {
			c.scheduler.Cancel(key)
		}
	}

	if c.cfg.DryRun {
		c.log.Info(FormatPlan(immediate))
	} else if !immediate.IsEmpty() {
		c.applyAndCount(ctx, immediate)
	}

	due := c.scheduler.Due(time.Now())
	if len(due) > 0 {
		deletePlan := model.Plan{Deletes: due}
		if c.cfg.DryRun {
			c.log.Info(FormatPlan(deletePlan))
		} else {
			c.applyAndCount(ctx, deletePlan)
		}
	}
}

func (c *Controller) drainScheduler(ctx context.Context, farFuture time.Time) {
	due := c.scheduler.Due(farFuture)
	if len(due) == 0 {
		return
	}
	plan := model.Plan{Deletes: due}
	if c.cfg.DryRun {
		c.log.Info(FormatPlan(plan))
		return
	}
	c.applyAndCount(ctx, plan)
}

func (c *Controller) applyAndCount(ctx context.Context, plan model.Plan) {
	errs := c.reg.Apply(ctx, plan)
	for _, err := range errs {
		c.log.Error(err, "applying change failed")
		if c.metrics != nil {
			c.metrics.ProviderErrorsTotal.Inc()
		}
	}
	if c.metrics == nil {
		return
	}
	c.metrics.ChangesTotal.WithLabelValues(model.ChangeCreate.String()).Add(float64(len(plan.Creates)))
	c.metrics.ChangesTotal.WithLabelValues(model.ChangeUpdate.String()).Add(float64(len(plan.Updates)))
	c.metrics.ChangesTotal.WithLabelValues(model.ChangeDelete.String()).Add(float64(len(plan.Deletes)))
}
