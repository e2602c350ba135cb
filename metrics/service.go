package metrics

import "time"

const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

type Service interface {
	IncItemsEnqueuedTotalBy(count int64, objectType string)
	IncItemsProcessedTotalBy(count int64, outcome string)
	IncBatchesTotalBy(count int64, source string)
	IncItemsStaleRecoveredTotalBy(count int64)
	ObserveItemProcessingTime(objectType string, duration time.Duration)
	SetQueueDepth(status string, depth int64)
}

func NewMetricsService(metricsEnabled bool) Service {
	if metricsEnabled {
		return newPrometheusMetricsService()
	}
	return newNoopMetricsService()
}
