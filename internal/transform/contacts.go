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

type contactDoc struct {
	Name     string `json:"nome"`
	Type     string `json:"tipo"`
	Document string `json:"numeroDocumento"`
	Phone    string `json:"telefone"`
	Address  struct {
		General struct {
			City       string `json:"municipio"`
			State      string `json:"uf"`
			PostalCode string `json:"cep"`
		} `json:"geral"`
	} `json:"endereco"`
}

func (p *Pipeline) runContacts(ctx context.Context) (StageStats, error) {
	rows, err := p.raw.Pending(ctx, rawdomain.Contacts)
	if err != nil {
		return StageStats{}, err
	}
	stats := StageStats{Pending: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}

	now := p.clock.Now()
	candidates := make([]dwdomain.DimContact, 0, len(rows))
	for _, row := range rows {
		var doc contactDoc
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return stats, fmt.Errorf("contact external_id %d: %w", row.ExternalID, err)
		}

		taxID := NormalizeTaxID(doc.Document)
		candidates = append(candidates, dwdomain.DimContact{
			ExternalID:  row.ExternalID,
			Name:        doc.Name,
			TaxID:       taxID,
			PersonType:  PersonTypeFor(doc.Type, taxID),
			Phone:       FormatPhone(doc.Phone),
			City:        strOrNil(doc.Address.General.City),
			State:       strOrNil(doc.Address.General.State),
			PostalCode:  FormatPostalCode(doc.Address.General.PostalCode),
			IngestedAt:  row.IngestedAt,
			ProcessedAt: now,
		})
	}

	existing, err := loadExisting(ctx, p.db, func(c dwdomain.DimContact) int64 { return c.ExternalID })
	if err != nil {
		return stats, err
	}

	var inserts, updates []dwdomain.DimContact
	for _, cand := range candidates {
		prev, ok := existing[cand.ExternalID]
		switch {
		case !ok:
			cand.ContactID = p.genID.Generate()
			inserts = append(inserts, cand)
		case sameContact(prev, cand):
			stats.Skipped++
		default:
			cand.ContactID = prev.ContactID
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
		return stats, fmt.Errorf("write dim_contacts: %w", err)
	}
	stats.Inserted = len(inserts)
	stats.Updated = len(updates)

	if err := p.markProcessed(ctx, rawdomain.Contacts, rows); err != nil {
		return stats, err
	}

	obsmetrics.Pipeline().AddRecords("dim_contacts", obsmetrics.OutcomeInserted, stats.Inserted)
	obsmetrics.Pipeline().AddRecords("dim_contacts", obsmetrics.OutcomeUpdated, stats.Updated)
	obsmetrics.Pipeline().AddRecords("dim_contacts", obsmetrics.OutcomeSkipped, stats.Skipped)
	p.log.Debug("contacts transformed", zap.Int("pending", stats.Pending))
	return stats, nil
}

// sameContact compares only the derived columns, so payload noise that does
// not survive normalization never counts as a change.
func sameContact(a, b dwdomain.DimContact) bool {
	return a.Name == b.Name &&
		strPtrEqual(a.TaxID, b.TaxID) &&
		strPtrEqual(a.PersonType, b.PersonType) &&
		strPtrEqual(a.Phone, b.Phone) &&
		strPtrEqual(a.City, b.City) &&
		strPtrEqual(a.State, b.State) &&
		strPtrEqual(a.PostalCode, b.PostalCode)
}
