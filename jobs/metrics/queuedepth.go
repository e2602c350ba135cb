package metrics

import (
	"context"
	"time"

	"github.com/jetstream-aero/embedq/common"
	"github.com/jetstream-aero/embedq/db"
	"github.com/jetstream-aero/embedq/metrics"

	"github.com/rs/zerolog/log"
)

type queueStatsStore interface {
	SelectQueueStats(ctx context.Context) (*db.QueueStats, error)
}

type QueueDepthMetricsJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewQueueDepthMetricsJob(metricsService metrics.Service, store queueStatsStore, interval time.Duration) *QueueDepthMetricsJob {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), tickTimeout(interval))
				stats, err := store.SelectQueueStats(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to fetch queue stats by QueueDepthMetricsJob")
				} else {
					metricsService.SetQueueDepth(common.PendingStatus, int64(stats.Pending))
					metricsService.SetQueueDepth(common.ProcessingStatus, int64(stats.Processing))
					metricsService.SetQueueDepth(common.CompletedStatus, int64(stats.Completed))
					metricsService.SetQueueDepth(common.FailedStatus, int64(stats.Failed))
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &QueueDepthMetricsJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *QueueDepthMetricsJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}

func tickTimeout(interval time.Duration) time.Duration {
	if interval > 2*time.Second {
		return interval - time.Second
	}
	return interval
}
