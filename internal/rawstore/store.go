package rawstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/velodata/blingsync/internal/clock"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	"github.com/velodata/blingsync/internal/rawstore/domain"
	"github.com/velodata/blingsync/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// Incoming is a freshly fetched record keyed by its upstream id.
type Incoming struct {
	ExternalID int64
	Payload    []byte
}

// Stats reports the reconciliation outcome of one batch.
type Stats struct {
	Inserted      int
	Updated       int
	Skipped       int
	Conflicts     int
	CompareErrors int
	Total         int
}

// Store reconciles incoming batches against the raw layer with minimal
// writes: new keys are inserted, changed documents upserted, identical ones
// skipped.
type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
	log   *zap.Logger
}

func New(conn *gorm.DB, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) *Store {
	return &Store{
		db:    conn,
		genID: genID,
		clock: clk,
		log:   log.Named("rawstore"),
	}
}

// UpsertBatch classifies each incoming record as insert, update, or skip and
// applies the writes in one transaction. A comparison failure counts the
// record as an update (the upstream payload is authoritative) but is logged
// and reported so a persistently broken stored document does not hide.
func (s *Store) UpsertBatch(ctx context.Context, col domain.Collection, records []Incoming) (Stats, error) {
	stats := Stats{Total: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	existing, err := s.existingPayloads(ctx, col)
	if err != nil {
		return stats, fmt.Errorf("rawstore: load existing %s: %w", col.Name, err)
	}

	now := s.clock.Now()
	var (
		inserts []*domain.RawRecord
		updates []*domain.RawRecord
	)
	for _, rec := range records {
		stored, ok := existing[rec.ExternalID]
		if !ok {
			inserts = append(inserts, &domain.RawRecord{
				ID:         s.genID.Generate(),
				ExternalID: rec.ExternalID,
				Payload:    datatypes.JSON(rec.Payload),
				IngestedAt: now,
				Status:     domain.StatusPending,
			})
			stats.Inserted++
			continue
		}

		equal, cmpErr := EqualJSON(stored, rec.Payload)
		if cmpErr != nil {
			stats.CompareErrors++
			s.log.Error("payload comparison failed, treating as changed",
				zap.String("collection", col.Name),
				zap.Int64("external_id", rec.ExternalID),
				zap.Error(cmpErr),
			)
		}
		if cmpErr == nil && equal {
			stats.Skipped++
			continue
		}

		updates = append(updates, &domain.RawRecord{
			ID:         s.genID.Generate(),
			ExternalID: rec.ExternalID,
			Payload:    datatypes.JSON(rec.Payload),
			IngestedAt: now,
			Status:     domain.StatusPending,
		})
		stats.Updated++
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(inserts) > 0 {
			if err := tx.Table(col.Table).CreateInBatches(inserts, insertBatchSize).Error; err != nil {
				return fmt.Errorf("bulk insert: %w", err)
			}
		}
		for _, rec := range updates {
			if err := upsert(tx, col, rec); err != nil {
				return fmt.Errorf("upsert external_id %d: %w", rec.ExternalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Stats{Total: len(records)}, fmt.Errorf("rawstore: reconcile %s: %w", col.Name, err)
	}

	m := obsmetrics.Pipeline()
	m.AddRecords(col.Name, obsmetrics.OutcomeInserted, stats.Inserted)
	m.AddRecords(col.Name, obsmetrics.OutcomeUpdated, stats.Updated)
	m.AddRecords(col.Name, obsmetrics.OutcomeSkipped, stats.Skipped)

	s.log.Info("batch reconciled",
		zap.String("collection", col.Name),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("compare_errors", stats.CompareErrors),
		zap.Int("total", stats.Total),
	)
	return stats, nil
}

// InsertNew is the cold-start fast path: records whose external ids are
// already present are filtered with one query and the rest inserted without
// comparison. Duplicate-key conflicts are counted per row and do not stop the
// batch.
func (s *Store) InsertNew(ctx context.Context, col domain.Collection, records []Incoming) (Stats, error) {
	stats := Stats{Total: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ExternalID)
	}

	var known []int64
	if err := s.db.WithContext(ctx).
		Table(col.Table).
		Where("external_id IN ?", ids).
		Pluck("external_id", &known).Error; err != nil {
		return stats, fmt.Errorf("rawstore: filter known %s: %w", col.Name, err)
	}
	knownSet := make(map[int64]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}
	stats.Skipped = len(known)

	now := s.clock.Now()
	for _, rec := range records {
		if _, ok := knownSet[rec.ExternalID]; ok {
			continue
		}
		row := &domain.RawRecord{
			ID:         s.genID.Generate(),
			ExternalID: rec.ExternalID,
			Payload:    datatypes.JSON(rec.Payload),
			IngestedAt: now,
			Status:     domain.StatusPending,
		}
		if err := s.db.WithContext(ctx).Table(col.Table).Create(row).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				stats.Conflicts++
				continue
			}
			return stats, fmt.Errorf("rawstore: insert %s external_id %d: %w", col.Name, rec.ExternalID, err)
		}
		stats.Inserted++
	}

	obsmetrics.Pipeline().AddRecords(col.Name, obsmetrics.OutcomeInserted, stats.Inserted)
	return stats, nil
}

// UpsertOne writes a single record with upsert-on-conflict semantics,
// resetting its processing status to pending.
func (s *Store) UpsertOne(ctx context.Context, col domain.Collection, rec Incoming) error {
	row := &domain.RawRecord{
		ID:         s.genID.Generate(),
		ExternalID: rec.ExternalID,
		Payload:    datatypes.JSON(rec.Payload),
		IngestedAt: s.clock.Now(),
		Status:     domain.StatusPending,
	}
	if err := upsert(s.db.WithContext(ctx), col, row); err != nil {
		return fmt.Errorf("rawstore: upsert %s external_id %d: %w", col.Name, rec.ExternalID, err)
	}
	return nil
}

// Pending returns the raw records awaiting transformation, in external-id
// order.
func (s *Store) Pending(ctx context.Context, col domain.Collection) ([]domain.RawRecord, error) {
	var rows []domain.RawRecord
	err := s.db.WithContext(ctx).
		Table(col.Table).
		Where("processing_status = ?", domain.StatusPending).
		Order("external_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rawstore: pending %s: %w", col.Name, err)
	}
	return rows, nil
}

// All returns every raw record of a collection in external-id order.
func (s *Store) All(ctx context.Context, col domain.Collection) ([]domain.RawRecord, error) {
	var rows []domain.RawRecord
	err := s.db.WithContext(ctx).
		Table(col.Table).
		Order("external_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rawstore: all %s: %w", col.Name, err)
	}
	return rows, nil
}

// MarkProcessed flips the given surrogate ids to processed.
func (s *Store) MarkProcessed(ctx context.Context, col domain.Collection, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Table(col.Table).
		Where("id IN ?", ids).
		Update("processing_status", domain.StatusProcessed).Error
	if err != nil {
		return fmt.Errorf("rawstore: mark processed %s: %w", col.Name, err)
	}
	return nil
}

// ResetPending forces every record of a collection back to pending, used by
// the periodic full-refresh run to reprocess the whole collection.
func (s *Store) ResetPending(ctx context.Context, col domain.Collection) error {
	err := s.db.WithContext(ctx).
		Table(col.Table).
		Where("1 = 1").
		Update("processing_status", domain.StatusPending).Error
	if err != nil {
		return fmt.Errorf("rawstore: reset pending %s: %w", col.Name, err)
	}
	return nil
}

// KnownExternalIDs returns the set of external ids already present in a
// collection.
func (s *Store) KnownExternalIDs(ctx context.Context, col domain.Collection) (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Table(col.Table).Pluck("external_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("rawstore: known ids %s: %w", col.Name, err)
	}
	known := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}

// LabelIndex extracts a string field from every stored payload of a
// collection, keyed by external id. Used to turn the channel and situation
// reference tables into id → label mappings.
func (s *Store) LabelIndex(ctx context.Context, col domain.Collection, field string) (map[int64]string, error) {
	rows, err := s.All(ctx, col)
	if err != nil {
		return nil, err
	}
	labels := make(map[int64]string, len(rows))
	for _, row := range rows {
		var doc map[string]any
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return nil, fmt.Errorf("rawstore: label index %s external_id %d: %w", col.Name, row.ExternalID, err)
		}
		if label, ok := doc[field].(string); ok {
			labels[row.ExternalID] = label
		}
	}
	return labels, nil
}

func (s *Store) existingPayloads(ctx context.Context, col domain.Collection) (map[int64][]byte, error) {
	var rows []struct {
		ExternalID int64
		Payload    datatypes.JSON
	}
	err := s.db.WithContext(ctx).
		Table(col.Table).
		Select("external_id", "payload").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[int64][]byte, len(rows))
	for _, row := range rows {
		existing[row.ExternalID] = row.Payload
	}
	return existing, nil
}

func upsert(tx *gorm.DB, col domain.Collection, rec *domain.RawRecord) error {
	return tx.Table(col.Table).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload", "ingested_at", "processing_status",
		}),
	}).Create(rec).Error
}
