package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/velodata/blingsync/internal/bling"
	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	"github.com/velodata/blingsync/internal/rawstore"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/zap"
)

// Service drives the extraction side of the pipeline: paginated list fetches,
// per-record detail enrichment, and reconciliation into the raw layer.
type Service struct {
	fetcher *bling.Fetcher
	store   *rawstore.Store
	tuning  *config.SyncConfigHolder
	clock   clock.Clock
	log     *zap.Logger
}

func New(fetcher *bling.Fetcher, store *rawstore.Store, tuning *config.SyncConfigHolder, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		store:   store,
		tuning:  tuning,
		clock:   clk,
		log:     log.Named("extract"),
	}
}

// SyncCollection fetches every page of a collection and reconciles the full
// batch against the raw layer. A page that cannot be fetched aborts before
// anything is written, so a failed extraction persists nothing for the
// collection.
func (s *Service) SyncCollection(ctx context.Context, col rawdomain.Collection) (rawstore.Stats, error) {
	cfg := s.tuning.Get()

	records, err := s.fetcher.FetchAll(ctx, col.Resource, cfg)
	if err != nil {
		return rawstore.Stats{}, fmt.Errorf("extract %s: %w", col.Name, err)
	}

	incoming := make([]rawstore.Incoming, 0, len(records))
	for _, rec := range records {
		incoming = append(incoming, rawstore.Incoming{ExternalID: rec.ID, Payload: rec.Document})
	}
	return s.store.UpsertBatch(ctx, col, incoming)
}

// SyncContacts lists all contacts, then enriches only the not-yet-known ones
// with their full detail document (structured address and so on) before the
// insert-only fast path. Known contacts are left untouched: the list document
// is a different shape from the stored detail, so comparing them would flag
// every contact as changed on every run.
func (s *Service) SyncContacts(ctx context.Context) (rawstore.Stats, error) {
	cfg := s.tuning.Get()
	col := rawdomain.Contacts

	records, err := s.fetcher.FetchAll(ctx, col.Resource, cfg)
	if err != nil {
		return rawstore.Stats{}, fmt.Errorf("extract %s: %w", col.Name, err)
	}

	known, err := s.store.KnownExternalIDs(ctx, col)
	if err != nil {
		return rawstore.Stats{}, err
	}

	skipped := 0
	var fresh []rawstore.Incoming
	for _, rec := range records {
		if _, ok := known[rec.ID]; ok {
			skipped++
			continue
		}

		doc := rec.Document
		detail, err := s.fetcher.FetchDetail(ctx, col.Resource, rec.ID, cfg)
		if err != nil {
			return rawstore.Stats{}, err
		}
		if detail.Found {
			doc = detail.Document
		} else {
			s.log.Warn("contact detail unavailable, keeping list document",
				zap.Int64("external_id", rec.ID))
		}
		fresh = append(fresh, rawstore.Incoming{ExternalID: rec.ID, Payload: doc})

		if err := s.clock.Sleep(ctx, cfg.ReferenceDelay); err != nil {
			return rawstore.Stats{}, err
		}
	}

	stats, err := s.store.InsertNew(ctx, col, fresh)
	if err != nil {
		return stats, err
	}
	stats.Skipped += skipped
	stats.Total = len(records)
	return stats, nil
}

// EnrichOrderDetails walks raw orders whose stored document still lacks a
// non-empty item array and replaces them with the full order detail. Each
// record commits on its own, so an interruption keeps everything already
// written.
func (s *Service) EnrichOrderDetails(ctx context.Context) (int, error) {
	cfg := s.tuning.Get()
	col := rawdomain.Orders

	rows, err := s.store.All(ctx, col)
	if err != nil {
		return 0, err
	}

	var missing []int64
	for _, row := range rows {
		if !hasItems(row.Payload) {
			missing = append(missing, row.ExternalID)
		}
	}
	s.log.Info("order detail pass",
		zap.Int("orders", len(rows)),
		zap.Int("missing_items", len(missing)),
	)
	if len(missing) == 0 {
		return 0, nil
	}

	enriched := 0
	for i, id := range missing {
		if err := ctx.Err(); err != nil {
			return enriched, err
		}

		detail, err := s.fetcher.FetchDetail(ctx, col.Resource, id, cfg)
		if err != nil {
			return enriched, err
		}
		if !detail.Found {
			s.log.Warn("order detail unavailable", zap.Int64("external_id", id))
		} else {
			if err := s.store.UpsertOne(ctx, col, rawstore.Incoming{ExternalID: id, Payload: detail.Document}); err != nil {
				return enriched, err
			}
			enriched++
		}

		if (i+1)%cfg.DetailBatchSize == 0 {
			s.log.Info("order detail progress",
				zap.Int("done", i+1),
				zap.Int("total", len(missing)),
			)
		}
		if err := s.clock.Sleep(ctx, cfg.ReferenceDelay); err != nil {
			return enriched, err
		}
	}

	return enriched, nil
}

func hasItems(payload []byte) bool {
	var doc struct {
		Items []json.RawMessage `json:"itens"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false
	}
	return len(doc.Items) > 0
}
