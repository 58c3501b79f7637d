package rawstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velodata/blingsync/internal/clock"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	"github.com/velodata/blingsync/internal/rawstore/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()

	obsmetrics.ResetPipelineMetricsForTest()
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	registry := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetPipelineMetricsForTest()
	})

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	for _, col := range domain.All() {
		require.NoError(t, conn.Table(col.Table).AutoMigrate(&domain.RawRecord{}))
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	return New(conn, node, fake, zap.NewNop()), fake
}

func doc(id int64, name string) Incoming {
	return Incoming{
		ExternalID: id,
		Payload:    []byte(fmt.Sprintf(`{"id":%d,"nome":%q}`, id, name)),
	}
}

func TestUpsertBatchClassifiesInsertUpdateSkip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertBatch(ctx, domain.Contacts, []Incoming{
		doc(1, "Ana"), doc(2, "Bruno"), doc(3, "Clara"),
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Inserted: 3, Total: 3}, first)

	// Same payload for 1, changed for 2, a brand-new 4.
	second, err := store.UpsertBatch(ctx, domain.Contacts, []Incoming{
		doc(1, "Ana"), doc(2, "Bruno Silva"), doc(4, "Davi"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, second.Skipped)
}

func TestUpsertBatchUpdateResetsStatusAndTimestamp(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertBatch(ctx, domain.Products, []Incoming{doc(10, "Bicicleta")})
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, domain.Products, idsOf(t, store, domain.Products)))

	fake.Advance(time.Hour)
	stats, err := store.UpsertBatch(ctx, domain.Products, []Incoming{doc(10, "Bicicleta Aro 29")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	rows, err := store.Pending(ctx, domain.Products)
	require.NoError(t, err)
	require.Len(t, rows, 1, "an update forces reprocessing")
	assert.WithinDuration(t, fake.Now(), rows[0].IngestedAt, time.Second)
}

func TestUpsertBatchSkipLeavesStatusAlone(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertBatch(ctx, domain.Channels, []Incoming{doc(3, "Loja Virtual")})
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, domain.Channels, idsOf(t, store, domain.Channels)))

	stats, err := store.UpsertBatch(ctx, domain.Channels, []Incoming{doc(3, "Loja Virtual")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	rows, err := store.Pending(ctx, domain.Channels)
	require.NoError(t, err)
	assert.Empty(t, rows, "identical payload does not reset processed status")
}

func TestUpsertBatchKeyOrderDifferenceIsSkip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertBatch(ctx, domain.Contacts, []Incoming{
		{ExternalID: 5, Payload: []byte(`{"id":5,"nome":"Eva","uf":"SP"}`)},
	})
	require.NoError(t, err)

	stats, err := store.UpsertBatch(ctx, domain.Contacts, []Incoming{
		{ExternalID: 5, Payload: []byte(`{"uf":"SP","nome":"Eva","id":5}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped, "field order is not a content change")
}

func TestInsertNewSkipsKnownAndCountsConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertBatch(ctx, domain.Contacts, []Incoming{doc(1, "Ana")})
	require.NoError(t, err)

	stats, err := store.InsertNew(ctx, domain.Contacts, []Incoming{
		doc(1, "Ana Maria"), doc(2, "Bruno"), doc(3, "Clara"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 1, stats.Skipped, "known id filtered before insert")

	var count int64
	require.NoError(t, store.db.Table(domain.Contacts.Table).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestUpsertOneInsertsThenUpdates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertOne(ctx, domain.Situations, doc(9, "Em aberto")))
	require.NoError(t, store.UpsertOne(ctx, domain.Situations, doc(9, "Atendido")))

	rows, err := store.All(ctx, domain.Situations)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, string(rows[0].Payload), "Atendido")
}

func TestResetPendingFlipsEverything(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertBatch(ctx, domain.Orders, []Incoming{doc(1, "a"), doc(2, "b")})
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, domain.Orders, idsOf(t, store, domain.Orders)))

	pending, err := store.Pending(ctx, domain.Orders)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, store.ResetPending(ctx, domain.Orders))
	pending, err = store.Pending(ctx, domain.Orders)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestLabelIndexReadsPayloadField(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertOne(ctx, domain.Situations, doc(6, "Em andamento")))
	require.NoError(t, store.UpsertOne(ctx, domain.Situations, doc(9, "Atendido")))

	labels, err := store.LabelIndex(ctx, domain.Situations, "nome")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{6: "Em andamento", 9: "Atendido"}, labels)
}

func idsOf(t *testing.T, store *Store, col domain.Collection) []snowflake.ID {
	t.Helper()
	rows, err := store.All(context.Background(), col)
	require.NoError(t, err)
	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
