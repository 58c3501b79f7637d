package extract

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/velodata/blingsync/internal/rawstore"
	rawdomain "github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/zap"
)

// ReferenceStats reports one reference-resolution pass.
type ReferenceStats struct {
	Discovered int
	Resolved   int
	NotFound   int
}

// SyncChannels resolves the sales channels referenced by ingested orders.
// This is a satellite extraction: the id set comes from documents already in
// the raw layer, not from pagination.
func (s *Service) SyncChannels(ctx context.Context) (ReferenceStats, error) {
	ids, err := s.discoverReferenceIDs(ctx, func(doc orderRefs) int64 { return doc.Store.ID })
	if err != nil {
		return ReferenceStats{}, err
	}
	return s.resolveReferences(ctx, rawdomain.Channels, ids)
}

// SyncSituations resolves the order situations referenced by ingested orders.
func (s *Service) SyncSituations(ctx context.Context) (ReferenceStats, error) {
	ids, err := s.discoverReferenceIDs(ctx, func(doc orderRefs) int64 { return doc.Situation.ID })
	if err != nil {
		return ReferenceStats{}, err
	}
	return s.resolveReferences(ctx, rawdomain.Situations, ids)
}

// SituationLabels returns the id → label mapping consumed by the order
// transformation stage.
func (s *Service) SituationLabels(ctx context.Context) (map[int64]string, error) {
	return s.referenceLabels(ctx, rawdomain.Situations, "nome")
}

// ChannelLabels returns the id → label mapping for sales channels.
func (s *Service) ChannelLabels(ctx context.Context) (map[int64]string, error) {
	return s.referenceLabels(ctx, rawdomain.Channels, "descricao")
}

type orderRefs struct {
	Store struct {
		ID int64 `json:"id"`
	} `json:"loja"`
	Situation struct {
		ID int64 `json:"id"`
	} `json:"situacao"`
}

func (s *Service) discoverReferenceIDs(ctx context.Context, pick func(orderRefs) int64) ([]int64, error) {
	rows, err := s.store.All(ctx, rawdomain.Orders)
	if err != nil {
		return nil, err
	}

	set := make(map[int64]struct{})
	for _, row := range rows {
		var refs orderRefs
		if err := json.Unmarshal(row.Payload, &refs); err != nil {
			continue
		}
		if id := pick(refs); id != 0 {
			set[id] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Service) resolveReferences(ctx context.Context, col rawdomain.Collection, ids []int64) (ReferenceStats, error) {
	stats := ReferenceStats{Discovered: len(ids)}
	if len(ids) == 0 {
		return stats, nil
	}

	known, err := s.store.KnownExternalIDs(ctx, col)
	if err != nil {
		return stats, err
	}
	cfg := s.tuning.Get()

	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		detail, err := s.fetcher.FetchDetail(ctx, col.Resource, id, cfg)
		if err != nil {
			return stats, err
		}
		if !detail.Found {
			stats.NotFound++
			s.log.Warn("reference not found upstream",
				zap.String("collection", col.Name),
				zap.Int64("external_id", id),
			)
			continue
		}

		if err := s.store.UpsertOne(ctx, col, rawstore.Incoming{ExternalID: id, Payload: detail.Document}); err != nil {
			return stats, err
		}
		stats.Resolved++

		if err := s.clock.Sleep(ctx, cfg.ReferenceDelay); err != nil {
			return stats, err
		}
	}

	s.log.Info("references resolved",
		zap.String("collection", col.Name),
		zap.Int("discovered", stats.Discovered),
		zap.Int("resolved", stats.Resolved),
		zap.Int("not_found", stats.NotFound),
	)
	return stats, nil
}

func (s *Service) referenceLabels(ctx context.Context, col rawdomain.Collection, labelField string) (map[int64]string, error) {
	return s.store.LabelIndex(ctx, col, labelField)
}
