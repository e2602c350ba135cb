package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusMetricsService struct {
	itemsEnqueuedTotal       *prometheus.CounterVec
	itemsProcessedTotal      *prometheus.CounterVec
	batchesTotal             *prometheus.CounterVec
	itemsStaleRecoveredTotal prometheus.Counter
	itemProcessingDuration   *prometheus.HistogramVec
	queueDepth               *prometheus.GaugeVec
}

func newPrometheusMetricsService() *PrometheusMetricsService {
	srv := &PrometheusMetricsService{
		itemsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedq_items_enqueued_total",
				Help: "Total number of items added to the embedding queue",
			},
			[]string{"object_type"},
		),

		itemsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedq_items_processed_total",
				Help: "Total number of processing attempts that reached a terminal per-item result",
			},
			[]string{"outcome"},
		),

		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedq_batches_total",
				Help: "Total number of processing passes that handled at least one item",
			},
			[]string{"source"},
		),

		itemsStaleRecoveredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedq_items_stale_recovered_total",
				Help: "Total number of items recovered from a stuck processing state",
			},
		),

		itemProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedq_item_processing_duration_seconds",
				Help:    "Duration of the downstream indexing call per item",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"object_type"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "embedq_queue_depth",
				Help: "Current number of queue items per status",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(srv.itemsEnqueuedTotal)
	prometheus.MustRegister(srv.itemsProcessedTotal)
	prometheus.MustRegister(srv.batchesTotal)
	prometheus.MustRegister(srv.itemsStaleRecoveredTotal)
	prometheus.MustRegister(srv.itemProcessingDuration)
	prometheus.MustRegister(srv.queueDepth)

	return srv
}

func (pms *PrometheusMetricsService) IncItemsEnqueuedTotalBy(count int64, objectType string) {
	pms.itemsEnqueuedTotal.WithLabelValues(objectType).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncItemsProcessedTotalBy(count int64, outcome string) {
	pms.itemsProcessedTotal.WithLabelValues(outcome).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncBatchesTotalBy(count int64, source string) {
	pms.batchesTotal.WithLabelValues(source).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncItemsStaleRecoveredTotalBy(count int64) {
	pms.itemsStaleRecoveredTotal.Add(float64(count))
}

func (pms *PrometheusMetricsService) ObserveItemProcessingTime(objectType string, duration time.Duration) {
	pms.itemProcessingDuration.WithLabelValues(objectType).Observe(duration.Seconds())
}

func (pms *PrometheusMetricsService) SetQueueDepth(status string, depth int64) {
	pms.queueDepth.WithLabelValues(status).Set(float64(depth))
}
