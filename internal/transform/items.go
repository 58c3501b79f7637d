package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	dwdomain "github.com/velodata/blingsync/internal/dw/domain"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type itemKey struct {
	OrderID snowflake.ID
	ItemID  int64
}

// runItems explodes the item array of every order document into line-item
// rows. An order with 3 items produces 3 rows. Rows are append-only: a
// (order, item) pair already present is left untouched, so re-running the
// stage never duplicates lines.
func (p *Pipeline) runItems(ctx context.Context) (StageStats, error) {
	rows, err := p.raw.All(ctx, rawdomain.Orders)
	if err != nil {
		return StageStats{}, err
	}
	stats := StageStats{}
	if len(rows) == 0 {
		return stats, nil
	}

	orders, err := loadExisting(ctx, p.db, func(o dwdomain.FactOrder) int64 { return o.ExternalID })
	if err != nil {
		return stats, err
	}
	products, err := loadExisting(ctx, p.db, func(pr dwdomain.DimProduct) int64 { return pr.ExternalID })
	if err != nil {
		return stats, err
	}

	var existing []dwdomain.FactOrderItem
	if err := p.db.WithContext(ctx).Select("order_id", "external_id").Find(&existing).Error; err != nil {
		return stats, fmt.Errorf("load existing items: %w", err)
	}
	seen := make(map[itemKey]struct{}, len(existing))
	for _, item := range existing {
		seen[itemKey{item.OrderID, item.ExternalID}] = struct{}{}
	}

	now := p.clock.Now()
	missingProducts := 0
	var inserts []dwdomain.FactOrderItem
	for _, row := range rows {
		var doc orderDoc
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return stats, fmt.Errorf("order external_id %d: %w", row.ExternalID, err)
		}
		if len(doc.Items) == 0 {
			continue
		}

		// Orders dropped by the order stage have no fact row yet; their
		// items wait with them.
		order, ok := orders[row.ExternalID]
		if !ok {
			continue
		}

		for _, item := range doc.Items {
			stats.Pending++
			key := itemKey{order.OrderID, item.ID}
			if _, dup := seen[key]; dup {
				stats.Skipped++
				continue
			}
			seen[key] = struct{}{}

			line := dwdomain.FactOrderItem{
				ItemID:      p.genID.Generate(),
				OrderID:     order.OrderID,
				ExternalID:  item.ID,
				Description: strOrNil(item.Description),
				ProductCode: strOrNil(item.Code),
				Quantity:    round3(item.Quantity),
				UnitPrice:   round2(item.UnitPrice),
				Discount:    round2(item.Discount),
				Total:       round2(item.Quantity*item.UnitPrice - item.Discount),
				ProcessedAt: now,
			}
			if product, ok := products[item.Product.ID]; ok {
				id := product.ProductID
				line.ProductID = &id
			} else {
				missingProducts++
			}
			inserts = append(inserts, line)
		}
	}

	if len(inserts) > 0 {
		err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(inserts, writeBatchSize).Error
		})
		if err != nil {
			return stats, fmt.Errorf("write fact_order_items: %w", err)
		}
	}
	stats.Inserted = len(inserts)

	obsmetrics.Pipeline().AddRecords("fact_order_items", obsmetrics.OutcomeInserted, stats.Inserted)
	obsmetrics.Pipeline().AddRecords("fact_order_items", obsmetrics.OutcomeSkipped, stats.Skipped)
	if missingProducts > 0 {
		p.log.Warn("items without a matching product", zap.Int("count", missingProducts))
	}
	return stats, nil
}
