// Package metrics собирает метрики Prometheus по обучению и выдаче рекомендаций.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recommender"

// Collector хранит метрики в собственном реестре.
type Collector struct {
	registry *prometheus.Registry

	trainingRuns     *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	trainingActive   *prometheus.GaugeVec
	snapshotProducts *prometheus.GaugeVec
	queries          *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	emptyResults     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training passes by model family and result",
		}, []string{"family", "result"}),
		trainingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of training passes",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"family"}),
		trainingActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_in_progress",
			Help:      "1 while a training pass for the family is running",
		}, []string{"family"}),
		snapshotProducts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_products",
			Help:      "Number of products in the published snapshot",
		}, []string{"family"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Recommendation queries by kind and mode",
		}, []string{"kind", "mode"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Latency of recommendation queries",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		emptyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_results_total",
			Help:      "Queries answered with an empty list",
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_cache_lookups_total",
			Help:      "Ranking cache lookups by result",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.trainingRuns,
		c.trainingDuration,
		c.trainingActive,
		c.snapshotProducts,
		c.queries,
		c.queryDuration,
		c.emptyResults,
		c.cacheLookups,
	)

	return c
}

func (c *Collector) ObserveTraining(family, result string, d time.Duration) {
	c.trainingRuns.WithLabelValues(family, result).Inc()
	c.trainingDuration.WithLabelValues(family).Observe(d.Seconds())
}

func (c *Collector) SetTrainingActive(family string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	c.trainingActive.WithLabelValues(family).Set(v)
}

func (c *Collector) SetSnapshotSize(family string, products int) {
	c.snapshotProducts.WithLabelValues(family).Set(float64(products))
}

func (c *Collector) ObserveQuery(kind, mode string, d time.Duration, results int) {
	c.queries.WithLabelValues(kind, mode).Inc()
	c.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
	if results == 0 {
		c.emptyResults.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) CacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Registry возвращает реестр для экспорта.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдаёт метрики в формате Prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
