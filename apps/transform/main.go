package main

import (
	"context"
	"flag"

	"github.com/bwmarrin/snowflake"
	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	"github.com/velodata/blingsync/internal/logger"
	"github.com/velodata/blingsync/internal/migration"
	"github.com/velodata/blingsync/internal/rawstore"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"github.com/velodata/blingsync/internal/transform"
	"github.com/velodata/blingsync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var fullRefresh = flag.Bool("full-refresh", false, "reset every raw record to pending and reprocess everything")

// Transformation-only entry point: turns pending raw documents into the
// dimensional layer and exits.
func main() {
	flag.Parse()

	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		rawstore.Module,
		transform.Module,

		fx.Invoke(RunTransformation),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func RunTransformation(lc fx.Lifecycle, shutdowner fx.Shutdowner, raw *rawstore.Store, p *transform.Pipeline, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ctx := context.Background()
				if err := runOnce(ctx, raw, p); err != nil {
					log.Error("transformation failed", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}

func runOnce(ctx context.Context, raw *rawstore.Store, p *transform.Pipeline) error {
	if *fullRefresh {
		for _, col := range rawdomain.All() {
			if err := raw.ResetPending(ctx, col); err != nil {
				return err
			}
		}
	}
	_, err := p.Run(ctx)
	return err
}
