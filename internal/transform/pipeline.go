package transform

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/velodata/blingsync/internal/clock"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	"github.com/velodata/blingsync/internal/rawstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const writeBatchSize = 500

// StageStats reports one transformation stage.
type StageStats struct {
	Pending  int
	Inserted int
	Updated  int
	Skipped  int
	Dropped  int
}

// Report aggregates the stats of a full pipeline run, in execution order.
type Report struct {
	Contacts StageStats
	Products StageStats
	Channels StageStats
	Orders   StageStats
	Items    StageStats
}

// Pipeline turns pending raw documents into the dimensional layer. Stages
// run strictly in dependency order; each stage commits before the next one
// starts, so an interrupted run keeps everything already committed.
type Pipeline struct {
	db    *gorm.DB
	raw   *rawstore.Store
	genID *snowflake.Node
	clock clock.Clock
	log   *zap.Logger
}

func New(conn *gorm.DB, raw *rawstore.Store, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) *Pipeline {
	return &Pipeline{
		db:    conn,
		raw:   raw,
		genID: genID,
		clock: clk,
		log:   log.Named("transform"),
	}
}

// Run executes every stage. Orders depend on contacts and channels, items
// depend on orders and products, so the order below is fixed.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report

	stages := []struct {
		name string
		run  func(context.Context) (StageStats, error)
		out  *StageStats
	}{
		{"contacts", p.runContacts, &report.Contacts},
		{"products", p.runProducts, &report.Products},
		{"channels", p.runChannels, &report.Channels},
		{"orders", p.runOrders, &report.Orders},
		{"order_items", p.runItems, &report.Items},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := p.clock.Now()
		stats, err := stage.run(ctx)
		obsmetrics.Pipeline().ObserveStageDuration(stage.name, p.clock.Now().Sub(start))
		if err != nil {
			obsmetrics.Pipeline().IncStageError(stage.name)
			return report, fmt.Errorf("transform: stage %s: %w", stage.name, err)
		}

		*stage.out = stats
		p.log.Info("stage finished",
			zap.String("stage", stage.name),
			zap.Int("pending", stats.Pending),
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("skipped", stats.Skipped),
			zap.Int("dropped", stats.Dropped),
		)
	}

	return report, nil
}
