package transform

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"gorm.io/gorm"
)

// loadExisting bulk-loads a dimension or fact table into a map keyed by
// external id, so reconciliation needs a single read per stage.
func loadExisting[T any](ctx context.Context, db *gorm.DB, key func(T) int64) (map[int64]T, error) {
	var rows []T
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load existing: %w", err)
	}
	byKey := make(map[int64]T, len(rows))
	for _, row := range rows {
		byKey[key(row)] = row
	}
	return byKey, nil
}

func (p *Pipeline) markProcessed(ctx context.Context, col rawdomain.Collection, rows []rawdomain.RawRecord) error {
	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return p.raw.MarkProcessed(ctx, col, ids)
}
