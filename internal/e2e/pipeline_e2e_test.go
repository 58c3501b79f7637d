package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velodata/blingsync/internal/bling"
	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	dwdomain "github.com/velodata/blingsync/internal/dw/domain"
	"github.com/velodata/blingsync/internal/extract"
	"github.com/velodata/blingsync/internal/migration"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	"github.com/velodata/blingsync/internal/pipeline"
	"github.com/velodata/blingsync/internal/rawstore"
	"github.com/velodata/blingsync/internal/transform"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeBlingHandler serves the handful of upstream endpoints a full
// synchronization touches: paginated lists, per-entity details, and the
// reference endpoints discovered from order documents.
func fakeBlingHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contatos":
			fmt.Fprint(w, `{"data":[{"id":100,"nome":"Ana Lima"}],"total":1,"total_pages":1}`)
		case "/contatos/100":
			fmt.Fprint(w, `{"data":{"id":100,"nome":"Ana Lima","tipo":"F","numeroDocumento":"98765432100","telefone":"2133334444","endereco":{"geral":{"municipio":"Rio de Janeiro","uf":"RJ","cep":"20040020"}}}}`)
		case "/produtos":
			fmt.Fprint(w, `{"data":[{"id":200,"nome":"Bicicleta Aro 26 Houston Vermelho 18 marchas","codigo":"H-26-V","preco":1100.0,"precoCusto":700.0,"situacao":"A"}],"total":1,"total_pages":1}`)
		case "/pedidos/vendas":
			// The list document has no item array; the detail pass fills it.
			fmt.Fprint(w, `{"data":[{"id":300,"numeroLoja":"PED-300","data":"2025-06-05","total":1100.0,"contato":{"id":100},"loja":{"id":40},"situacao":{"id":50},"transporte":{"frete":30.0}}],"total":1,"total_pages":1}`)
		case "/pedidos/vendas/300":
			fmt.Fprint(w, `{"data":{"id":300,"numeroLoja":"PED-300","data":"2025-06-05","total":1100.0,"contato":{"id":100},"loja":{"id":40},"situacao":{"id":50},"transporte":{"frete":30.0},"itens":[{"id":1,"codigo":"H-26-V","descricao":"Bicicleta Aro 26","quantidade":1,"valor":1100.0,"desconto":0,"produto":{"id":200}}]}}`)
		case "/canais-venda/40":
			fmt.Fprint(w, `{"data":{"id":40,"descricao":"Balcão","tipo":"fisico"}}`)
		case "/situacoes/50":
			fmt.Fprint(w, `{"data":{"id":50,"nome":"Faturado"}}`)
		default:
			t.Errorf("unexpected upstream request %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newRunner(t *testing.T) (*pipeline.Runner, *gorm.DB) {
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

	srv := httptest.NewServer(fakeBlingHandler(t))
	t.Cleanup(srv.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC))

	tuningCfg := config.DefaultSyncConfig()
	tuningCfg.PageSize = 50
	tuningCfg.RequestDelay = time.Millisecond
	tuningCfg.DetailDelay = time.Millisecond
	tuningCfg.ReferenceDelay = time.Millisecond
	tuning := config.NewStaticSyncConfigHolder(tuningCfg)

	log := zap.NewNop()
	client := bling.NewClient(config.Config{BlingBaseURL: srv.URL, BlingAPIToken: "test-token"}, log)
	fetcher := bling.NewFetcher(client, fake, log)
	store := rawstore.New(conn, node, fake, log)
	svc := extract.New(fetcher, store, tuning, fake, log)
	pipe := transform.New(conn, store, node, fake, log)

	runner := pipeline.New(pipeline.Params{
		Extract:   svc,
		Transform: pipe,
		Raw:       store,
		Tuning:    tuning,
		Clock:     fake,
		Log:       log,
	})
	return runner, conn
}

func TestFullSynchronization(t *testing.T) {
	runner, conn := newRunner(t)
	ctx := context.Background()

	report, err := runner.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Extract["contacts"])
	assert.Equal(t, 1, report.Extract["products"])
	assert.Equal(t, 1, report.Extract["orders"])
	assert.Equal(t, 1, report.Extract["order_details"])
	assert.Equal(t, 1, report.Extract["channels"])
	assert.Equal(t, 1, report.Extract["situations"])

	assert.Equal(t, 1, report.Transform.Contacts.Inserted)
	assert.Equal(t, 1, report.Transform.Products.Inserted)
	assert.Equal(t, 1, report.Transform.Channels.Inserted)
	assert.Equal(t, 1, report.Transform.Orders.Inserted)
	assert.Equal(t, 1, report.Transform.Items.Inserted)

	var contact dwdomain.DimContact
	require.NoError(t, conn.Where("external_id = ?", 100).First(&contact).Error)
	assert.Equal(t, "Ana Lima", contact.Name)
	require.NotNil(t, contact.Phone)
	assert.Equal(t, "(21) 3333-4444", *contact.Phone)

	var product dwdomain.DimProduct
	require.NoError(t, conn.Where("external_id = ?", 200).First(&product).Error)
	require.NotNil(t, product.WheelSize)
	assert.Equal(t, "26", *product.WheelSize)
	require.NotNil(t, product.Gears)
	assert.Equal(t, 18, *product.Gears)

	var channel dwdomain.DimChannel
	require.NoError(t, conn.Where("external_id = ?", 40).First(&channel).Error)
	assert.Equal(t, "Balcão", channel.Label)

	var order dwdomain.FactOrder
	require.NoError(t, conn.Where("external_id = ?", 300).First(&order).Error)
	require.NotNil(t, order.ContactID)
	assert.Equal(t, contact.ContactID, *order.ContactID)
	require.NotNil(t, order.Situation)
	assert.Equal(t, "Faturado", *order.Situation)
	assert.Equal(t, 1, order.ItemsTotal)

	var items []dwdomain.FactOrderItem
	require.NoError(t, conn.Where("order_id = ?", order.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ProductID)
	assert.Equal(t, product.ProductID, *items[0].ProductID)
	assert.Equal(t, 1100.0, items[0].Total)
}

func TestSecondRunChangesNothing(t *testing.T) {
	runner, conn := newRunner(t)
	ctx := context.Background()

	_, err := runner.RunOnce(ctx)
	require.NoError(t, err)

	report, err := runner.RunOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, report.Transform.Contacts.Inserted)
	assert.Zero(t, report.Transform.Products.Inserted)
	assert.Zero(t, report.Transform.Channels.Inserted)
	assert.Zero(t, report.Transform.Orders.Inserted)
	assert.Zero(t, report.Transform.Orders.Updated)
	assert.Zero(t, report.Transform.Items.Inserted)

	for _, model := range []any{
		&dwdomain.DimContact{}, &dwdomain.DimProduct{}, &dwdomain.DimChannel{},
		&dwdomain.FactOrder{}, &dwdomain.FactOrderItem{},
	} {
		var count int64
		require.NoError(t, conn.Model(model).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	}
}
