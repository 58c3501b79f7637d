package transform

import (
	"context"
	"encoding/json"
	"fmt"

	dwdomain "github.com/velodata/blingsync/internal/dw/domain"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"gorm.io/gorm"
)

type channelDoc struct {
	Description string `json:"descricao"`
	Type        string `json:"tipo"`
}

func (p *Pipeline) runChannels(ctx context.Context) (StageStats, error) {
	rows, err := p.raw.Pending(ctx, rawdomain.Channels)
	if err != nil {
		return StageStats{}, err
	}
	stats := StageStats{Pending: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}

	now := p.clock.Now()
	candidates := make([]dwdomain.DimChannel, 0, len(rows))
	for _, row := range rows {
		var doc channelDoc
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return stats, fmt.Errorf("channel external_id %d: %w", row.ExternalID, err)
		}
		candidates = append(candidates, dwdomain.DimChannel{
			ExternalID:  row.ExternalID,
			Label:       doc.Description,
			ChannelType: strOrNil(doc.Type),
			IngestedAt:  row.IngestedAt,
			ProcessedAt: now,
		})
	}

	existing, err := loadExisting(ctx, p.db, func(c dwdomain.DimChannel) int64 { return c.ExternalID })
	if err != nil {
		return stats, err
	}

	var inserts, updates []dwdomain.DimChannel
	for _, cand := range candidates {
		prev, ok := existing[cand.ExternalID]
		switch {
		case !ok:
			cand.ChannelID = p.genID.Generate()
			inserts = append(inserts, cand)
		case prev.Label == cand.Label && strPtrEqual(prev.ChannelType, cand.ChannelType):
			stats.Skipped++
		default:
			cand.ChannelID = prev.ChannelID
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
		return stats, fmt.Errorf("write dim_channels: %w", err)
	}
	stats.Inserted = len(inserts)
	stats.Updated = len(updates)

	if err := p.markProcessed(ctx, rawdomain.Channels, rows); err != nil {
		return stats, err
	}

	obsmetrics.Pipeline().AddRecords("dim_channels", obsmetrics.OutcomeInserted, stats.Inserted)
	obsmetrics.Pipeline().AddRecords("dim_channels", obsmetrics.OutcomeUpdated, stats.Updated)
	obsmetrics.Pipeline().AddRecords("dim_channels", obsmetrics.OutcomeSkipped, stats.Skipped)
	return stats, nil
}
