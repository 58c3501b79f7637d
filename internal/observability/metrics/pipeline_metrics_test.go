package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamilies(t *testing.T, registry *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		byName[family.GetName()] = family
	}
	return byName
}

func counterValue(family *dto.MetricFamily, labels map[string]string) float64 {
	for _, metric := range family.GetMetric() {
		match := true
		for _, pair := range metric.GetLabel() {
			if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
				match = false
				break
			}
		}
		if match {
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestPipelineMetricsCounters(t *testing.T) {
	ResetPipelineMetricsForTest()
	registry := prometheus.NewRegistry()
	oldRegisterer := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = registry
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldRegisterer
		ResetPipelineMetricsForTest()
	})

	m := Pipeline()
	m.IncPageFetched("orders")
	m.IncPageFetched("orders")
	m.AddRecords("orders", OutcomeInserted, 5)
	m.AddRecords("orders", OutcomeInserted, -1)
	m.IncDetailLookup("orders", DetailResultNotFound)
	m.IncRun(RunSucceeded)

	families := gatherFamilies(t, registry)

	pages := families["blingsync_pages_fetched_total"]
	require.NotNil(t, pages)
	assert.Equal(t, 2.0, counterValue(pages, map[string]string{"collection": "orders"}))

	records := families["blingsync_records_total"]
	require.NotNil(t, records)
	assert.Equal(t, 5.0, counterValue(records, map[string]string{
		"collection": "orders",
		"outcome":    OutcomeInserted,
	}), "non-positive increments are ignored")

	lookups := families["blingsync_detail_lookups_total"]
	require.NotNil(t, lookups)
	assert.Equal(t, 1.0, counterValue(lookups, map[string]string{"result": DetailResultNotFound}))

	runs := families["blingsync_runs_total"]
	require.NotNil(t, runs)
	assert.Equal(t, 1.0, counterValue(runs, map[string]string{"result": RunSucceeded}))

	lastRun := families["blingsync_last_run_timestamp_seconds"]
	require.NotNil(t, lastRun)
	assert.Positive(t, lastRun.GetMetric()[0].GetGauge().GetValue())
}

func TestPipelineSingletonIsStableUntilReset(t *testing.T) {
	ResetPipelineMetricsForTest()
	registry := prometheus.NewRegistry()
	oldRegisterer := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = registry
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldRegisterer
		ResetPipelineMetricsForTest()
	})

	first := Pipeline()
	assert.Same(t, first, Pipeline())

	ResetPipelineMetricsForTest()
	assert.NotSame(t, first, Pipeline())
}
