package metrics

import "time"

type NoopMetricsService struct {
}

func newNoopMetricsService() *NoopMetricsService {
	return &NoopMetricsService{}
}

func (nms *NoopMetricsService) IncItemsEnqueuedTotalBy(count int64, objectType string) {
	// no-op
}

func (nms *NoopMetricsService) IncItemsProcessedTotalBy(count int64, outcome string) {
	// no-op
}

func (nms *NoopMetricsService) IncBatchesTotalBy(count int64, source string) {
	// no-op
}

func (nms *NoopMetricsService) IncItemsStaleRecoveredTotalBy(count int64) {
	// no-op
}

func (nms *NoopMetricsService) ObserveItemProcessingTime(objectType string, duration time.Duration) {
	// no-op
}

func (nms *NoopMetricsService) SetQueueDepth(status string, depth int64) {
	// no-op
}
