package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	dwdomain "github.com/velodata/blingsync/internal/dw/domain"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderDoc struct {
	StoreNumber string  `json:"numeroLoja"`
	Date        string  `json:"data"`
	Total       float64 `json:"total"`
	Contact     struct {
		ID int64 `json:"id"`
	} `json:"contato"`
	Store struct {
		ID int64 `json:"id"`
	} `json:"loja"`
	Situation struct {
		ID int64 `json:"id"`
	} `json:"situacao"`
	Transport struct {
		Freight float64 `json:"frete"`
	} `json:"transporte"`
	Items []orderItemDoc `json:"itens"`
}

type orderItemDoc struct {
	ID          int64   `json:"id"`
	Code        string  `json:"codigo"`
	Description string  `json:"descricao"`
	Quantity    float64 `json:"quantidade"`
	UnitPrice   float64 `json:"valor"`
	Discount    float64 `json:"desconto"`
	Product     struct {
		ID int64 `json:"id"`
	} `json:"produto"`
}

func (p *Pipeline) runOrders(ctx context.Context) (StageStats, error) {
	rows, err := p.raw.Pending(ctx, rawdomain.Orders)
	if err != nil {
		return StageStats{}, err
	}
	stats := StageStats{Pending: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}

	situations, err := p.raw.LabelIndex(ctx, rawdomain.Situations, "nome")
	if err != nil {
		return stats, err
	}
	contacts, err := loadExisting(ctx, p.db, func(c dwdomain.DimContact) int64 { return c.ExternalID })
	if err != nil {
		return stats, err
	}

	now := p.clock.Now()
	var candidates []dwdomain.FactOrder
	var transformed []rawdomain.RawRecord
	for _, row := range rows {
		var doc orderDoc
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return stats, fmt.Errorf("order external_id %d: %w", row.ExternalID, err)
		}

		// The upstream API hands back "0000-00-00" for orders without a
		// date. A fact row without a date is unusable, so those orders are
		// dropped and stay pending for a later run.
		orderDate, ok := parseOrderDate(doc.Date)
		if !ok {
			stats.Dropped++
			p.log.Warn("order dropped, invalid date",
				zap.Int64("external_id", row.ExternalID),
				zap.String("date", doc.Date),
			)
			continue
		}

		units := 0.0
		for _, item := range doc.Items {
			units += item.Quantity
		}

		cand := dwdomain.FactOrder{
			ExternalID:   row.ExternalID,
			OrderNumber:  strOrNil(doc.StoreNumber),
			OrderDate:    orderDate,
			TotalValue:   round2(doc.Total),
			FreightValue: round2(doc.Transport.Freight),
			ItemsTotal:   len(doc.Items),
			UnitsTotal:   round3(units),
			IngestedAt:   row.IngestedAt,
			ProcessedAt:  now,
		}
		if doc.Store.ID != 0 {
			id := doc.Store.ID
			cand.ChannelExternalID = &id
		}
		if label, ok := situations[doc.Situation.ID]; ok {
			cand.Situation = strPtr(label)
		}
		if contact, ok := contacts[doc.Contact.ID]; ok {
			id := contact.ContactID
			cand.ContactID = &id
		}

		candidates = append(candidates, cand)
		transformed = append(transformed, row)
	}

	existing, err := loadExisting(ctx, p.db, func(o dwdomain.FactOrder) int64 { return o.ExternalID })
	if err != nil {
		return stats, err
	}

	var inserts, updates []dwdomain.FactOrder
	for _, cand := range candidates {
		prev, ok := existing[cand.ExternalID]
		switch {
		case !ok:
			cand.OrderID = p.genID.Generate()
			inserts = append(inserts, cand)
		case sameOrder(prev, cand):
			stats.Skipped++
		default:
			cand.OrderID = prev.OrderID
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
		return stats, fmt.Errorf("write fact_orders: %w", err)
	}
	stats.Inserted = len(inserts)
	stats.Updated = len(updates)

	if err := p.markProcessed(ctx, rawdomain.Orders, transformed); err != nil {
		return stats, err
	}

	// Situations have no dimension table: their labels denormalize into the
	// fact rows above, which is their whole transformation.
	situationRows, err := p.raw.Pending(ctx, rawdomain.Situations)
	if err != nil {
		return stats, err
	}
	if err := p.markProcessed(ctx, rawdomain.Situations, situationRows); err != nil {
		return stats, err
	}

	obsmetrics.Pipeline().AddRecords("fact_orders", obsmetrics.OutcomeInserted, stats.Inserted)
	obsmetrics.Pipeline().AddRecords("fact_orders", obsmetrics.OutcomeUpdated, stats.Updated)
	obsmetrics.Pipeline().AddRecords("fact_orders", obsmetrics.OutcomeSkipped, stats.Skipped)
	return stats, nil
}

func parseOrderDate(raw string) (time.Time, bool) {
	if raw == "" || raw == "0000-00-00" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sameOrder(a, b dwdomain.FactOrder) bool {
	return a.OrderDate.Equal(b.OrderDate) &&
		strPtrEqual(a.OrderNumber, b.OrderNumber) &&
		snowflakePtrEqual(a.ContactID, b.ContactID) &&
		int64PtrEqual(a.ChannelExternalID, b.ChannelExternalID) &&
		round2(a.TotalValue) == round2(b.TotalValue) &&
		round2(a.FreightValue) == round2(b.FreightValue) &&
		a.ItemsTotal == b.ItemsTotal &&
		round3(a.UnitsTotal) == round3(b.UnitsTotal) &&
		strPtrEqual(a.Situation, b.Situation)
}

func snowflakePtrEqual(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
