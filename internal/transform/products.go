package transform

import (
	"context"
	"encoding/json"
	"fmt"

	dwdomain "github.com/velodata/blingsync/internal/dw/domain"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type productDoc struct {
	Name      string  `json:"nome"`
	Code      string  `json:"codigo"`
	Price     float64 `json:"preco"`
	CostPrice float64 `json:"precoCusto"`
	Situation string  `json:"situacao"`
}

func (p *Pipeline) runProducts(ctx context.Context) (StageStats, error) {
	rows, err := p.raw.Pending(ctx, rawdomain.Products)
	if err != nil {
		return StageStats{}, err
	}
	stats := StageStats{Pending: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}

	now := p.clock.Now()
	bikes := 0
	candidates := make([]dwdomain.DimProduct, 0, len(rows))
	for _, row := range rows {
		var doc productDoc
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return stats, fmt.Errorf("product external_id %d: %w", row.ExternalID, err)
		}

		cand := dwdomain.DimProduct{
			ExternalID:  row.ExternalID,
			SKU:         strOrNil(doc.Code),
			Description: doc.Name,
			SalePrice:   round2(doc.Price),
			CostPrice:   round2(doc.CostPrice),
			Situation:   strOrNil(doc.Situation),
			IngestedAt:  row.IngestedAt,
			ProcessedAt: now,
		}
		if IsBicycle(doc.Name) {
			bikes++
			attrs := ClassifyBike(doc.Name)
			cand.WheelSize = attrs.WheelSize
			cand.Brand = attrs.Brand
			cand.PrimaryColor = attrs.PrimaryColor
			cand.SecondaryColor = attrs.SecondaryColor
			cand.TertiaryColor = attrs.TertiaryColor
			cand.FrameSize = attrs.FrameSize
			cand.Gears = attrs.Gears
			cand.BrakeType = attrs.BrakeType
			cand.Gender = attrs.Gender
			cand.Audience = attrs.Audience
			cand.Category = attrs.Category
		}
		candidates = append(candidates, cand)
	}

	existing, err := loadExisting(ctx, p.db, func(pr dwdomain.DimProduct) int64 { return pr.ExternalID })
	if err != nil {
		return stats, err
	}

	var inserts, updates []dwdomain.DimProduct
	for _, cand := range candidates {
		prev, ok := existing[cand.ExternalID]
		switch {
		case !ok:
			cand.ProductID = p.genID.Generate()
			inserts = append(inserts, cand)
		case sameProduct(prev, cand):
			stats.Skipped++
		default:
			cand.ProductID = prev.ProductID
			updates = append(updates, cand)
		}
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(inserts) > 0 {
			if err := tx.CreateInBatches(inserts, writeBatchSize).Error; err != nil {
				return err
			}
		}
		for i := range updates {
			if err := tx.Save(&updates[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("write dim_products: %w", err)
	}
	stats.Inserted = len(inserts)
	stats.Updated = len(updates)

	if err := p.markProcessed(ctx, rawdomain.Products, rows); err != nil {
		return stats, err
	}

	obsmetrics.Pipeline().AddRecords("dim_products", obsmetrics.OutcomeInserted, stats.Inserted)
	obsmetrics.Pipeline().AddRecords("dim_products", obsmetrics.OutcomeUpdated, stats.Updated)
	obsmetrics.Pipeline().AddRecords("dim_products", obsmetrics.OutcomeSkipped, stats.Skipped)
	p.log.Debug("products transformed",
		zap.Int("pending", stats.Pending),
		zap.Int("bicycles", bikes),
	)
	return stats, nil
}

func sameProduct(a, b dwdomain.DimProduct) bool {
	return a.Description == b.Description &&
		strPtrEqual(a.SKU, b.SKU) &&
		round2(a.SalePrice) == round2(b.SalePrice) &&
		round2(a.CostPrice) == round2(b.CostPrice) &&
		strPtrEqual(a.WheelSize, b.WheelSize) &&
		strPtrEqual(a.Brand, b.Brand) &&
		strPtrEqual(a.PrimaryColor, b.PrimaryColor) &&
		strPtrEqual(a.SecondaryColor, b.SecondaryColor) &&
		strPtrEqual(a.TertiaryColor, b.TertiaryColor) &&
		strPtrEqual(a.FrameSize, b.FrameSize) &&
		intPtrEqual(a.Gears, b.Gears) &&
		strPtrEqual(a.BrakeType, b.BrakeType) &&
		strPtrEqual(a.Gender, b.Gender) &&
		strPtrEqual(a.Audience, b.Audience) &&
		strPtrEqual(a.Category, b.Category) &&
		strPtrEqual(a.Situation, b.Situation)
}
