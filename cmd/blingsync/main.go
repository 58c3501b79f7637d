package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/velodata/blingsync/internal/bling"
	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	"github.com/velodata/blingsync/internal/extract"
	"github.com/velodata/blingsync/internal/logger"
	"github.com/velodata/blingsync/internal/migration"
	"github.com/velodata/blingsync/internal/pipeline"
	"github.com/velodata/blingsync/internal/rawstore"
	"github.com/velodata/blingsync/internal/server"
	"github.com/velodata/blingsync/internal/transform"
	"github.com/velodata/blingsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		bling.Module,
		rawstore.Module,
		extract.Module,
		transform.Module,
		pipeline.Module,

		server.Module,
		fx.Invoke(StartPipeline),
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

func StartPipeline(lc fx.Lifecycle, r *pipeline.Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go r.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
