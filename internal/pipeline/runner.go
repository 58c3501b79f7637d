package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	"github.com/velodata/blingsync/internal/extract"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	"github.com/velodata/blingsync/internal/rawstore"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"github.com/velodata/blingsync/internal/transform"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Extract   *extract.Service
	Transform *transform.Pipeline
	Raw       *rawstore.Store
	Tuning    *config.SyncConfigHolder
	Clock     clock.Clock
	Log       *zap.Logger
}

// Runner sequences a full synchronization: extraction of every collection,
// order-detail enrichment, reference resolution, then the transformation
// stages in dependency order.
type Runner struct {
	extract   *extract.Service
	transform *transform.Pipeline
	raw       *rawstore.Store
	tuning    *config.SyncConfigHolder
	clock     clock.Clock
	log       *zap.Logger
}

func New(p Params) *Runner {
	return &Runner{
		extract:   p.Extract,
		transform: p.Transform,
		raw:       p.Raw,
		tuning:    p.Tuning,
		clock:     p.Clock,
		log:       p.Log.Named("pipeline"),
	}
}

// RunReport aggregates one full run.
type RunReport struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Extract   map[string]int
	Transform transform.Report
}

// RunOnce executes one complete synchronization. A failing step aborts the
// run, but everything committed before the failure stands.
func (r *Runner) RunOnce(ctx context.Context) (RunReport, error) {
	report := RunReport{
		RunID:   uuid.NewString(),
		Started: r.clock.Now(),
		Extract: make(map[string]int),
	}
	log := r.log.With(zap.String("run_id", report.RunID))
	log.Info("run started")

	if r.tuning.Get().FullRefresh {
		if err := r.resetAll(ctx); err != nil {
			return r.finish(report, log, err)
		}
		log.Info("full refresh, all collections reset to pending")
	}

	contactStats, err := r.extract.SyncContacts(ctx)
	if err != nil {
		return r.finish(report, log, fmt.Errorf("extract contacts: %w", err))
	}
	report.Extract["contacts"] = contactStats.Total

	productStats, err := r.extract.SyncCollection(ctx, rawdomain.Products)
	if err != nil {
		return r.finish(report, log, fmt.Errorf("extract products: %w", err))
	}
	report.Extract["products"] = productStats.Total

	orderStats, err := r.extract.SyncCollection(ctx, rawdomain.Orders)
	if err != nil {
		return r.finish(report, log, fmt.Errorf("extract orders: %w", err))
	}
	report.Extract["orders"] = orderStats.Total

	enriched, err := r.extract.EnrichOrderDetails(ctx)
	if err != nil {
		return r.finish(report, log, fmt.Errorf("enrich orders: %w", err))
	}
	report.Extract["order_details"] = enriched

	channelStats, err := r.extract.SyncChannels(ctx)
	if err != nil {
		return r.finish(report, log, fmt.Errorf("resolve channels: %w", err))
	}
	report.Extract["channels"] = channelStats.Resolved

	situationStats, err := r.extract.SyncSituations(ctx)
	if err != nil {
		return r.finish(report, log, fmt.Errorf("resolve situations: %w", err))
	}
	report.Extract["situations"] = situationStats.Resolved

	report.Transform, err = r.transform.Run(ctx)
	return r.finish(report, log, err)
}

// RunForever runs RunOnce on a fixed interval until the context is canceled.
// A failed run is logged and the loop keeps going.
func (r *Runner) RunForever(ctx context.Context) {
	interval := r.tuning.Get().SyncInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) resetAll(ctx context.Context) error {
	for _, col := range rawdomain.All() {
		if err := r.raw.ResetPending(ctx, col); err != nil {
			return fmt.Errorf("reset %s: %w", col.Name, err)
		}
	}
	return nil
}

func (r *Runner) finish(report RunReport, log *zap.Logger, err error) (RunReport, error) {
	report.Finished = r.clock.Now()
	metrics := obsmetrics.Pipeline()

	if err != nil {
		metrics.IncRun(obsmetrics.RunFailed)
		log.Error("run failed", zap.Error(err), zap.Duration("elapsed", report.Finished.Sub(report.Started)))
		return report, err
	}
	metrics.IncRun(obsmetrics.RunSucceeded)
	log.Info("run finished",
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
		zap.Any("extracted", report.Extract),
		zap.Int("orders_inserted", report.Transform.Orders.Inserted),
		zap.Int("items_inserted", report.Transform.Items.Inserted),
	)
	return report, nil
}
