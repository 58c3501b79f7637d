package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/velodata/blingsync/internal/bling"
	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	"github.com/velodata/blingsync/internal/extract"
	"github.com/velodata/blingsync/internal/logger"
	"github.com/velodata/blingsync/internal/migration"
	"github.com/velodata/blingsync/internal/rawstore"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"github.com/velodata/blingsync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Extraction-only entry point: lands every collection in the raw layer and
// exits. Transformation runs separately.
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

		fx.Invoke(RunExtraction),
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

func RunExtraction(lc fx.Lifecycle, shutdowner fx.Shutdowner, svc *extract.Service, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := extractAll(context.Background(), svc); err != nil {
					log.Error("extraction failed", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}

func extractAll(ctx context.Context, svc *extract.Service) error {
	if _, err := svc.SyncContacts(ctx); err != nil {
		return fmt.Errorf("contacts: %w", err)
	}
	if _, err := svc.SyncCollection(ctx, rawdomain.Products); err != nil {
		return fmt.Errorf("products: %w", err)
	}
	if _, err := svc.SyncCollection(ctx, rawdomain.Orders); err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	if _, err := svc.EnrichOrderDetails(ctx); err != nil {
		return fmt.Errorf("order details: %w", err)
	}
	if _, err := svc.SyncChannels(ctx); err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	if _, err := svc.SyncSituations(ctx); err != nil {
		return fmt.Errorf("situations: %w", err)
	}
	return nil
}
