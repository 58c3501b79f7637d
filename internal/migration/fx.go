package migration

import (
	"github.com/velodata/blingsync/internal/config"
	dwdomain "github.com/velodata/blingsync/internal/dw/domain"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The SQL migrations target postgres. The other dialects exist for
		// local runs and tests, where gorm's schema sync is enough.
		if cfg.DBType != "postgres" {
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

// AutoMigrate creates every raw and dimensional table from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	for _, col := range rawdomain.All() {
		if err := conn.Table(col.Table).AutoMigrate(&rawdomain.RawRecord{}); err != nil {
			return err
		}
	}
	return conn.AutoMigrate(
		&dwdomain.DimContact{},
		&dwdomain.DimProduct{},
		&dwdomain.DimChannel{},
		&dwdomain.FactOrder{},
		&dwdomain.FactOrderItem{},
	)
}
