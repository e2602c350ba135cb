package scheduler

import (
	"context"
	"time"

	"github.com/jetstream-aero/embedq/common"

	"github.com/rs/zerolog/log"
)

type batchProcessor interface {
	ProcessBatch(trigger common.TriggerRequest, ctx context.Context) (*common.BatchReport, error)
}

// ProcessingJob periodically drains the embedding queue, so the vector index
// converges even when nobody calls the HTTP trigger.
type ProcessingJob struct {
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
}

func NewProcessingJob(processor batchProcessor, interval time.Duration) *ProcessingJob {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), tickTimeout(interval))
				report, err := processor.ProcessBatch(common.TriggerRequest{Source: common.SchedulerTriggerSource}, ctx)
				if err != nil {
					log.Error().Err(err).Msg("scheduled embedding queue pass failed")
				} else if report != nil {
					log.Info().Int("success_count", report.SuccessCount).Int("failure_count", report.FailureCount).Msg("scheduled embedding queue pass completed")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &ProcessingJob{
		interval: interval,
		ticker:   ticker,
		done:     done,
	}
}

func (j *ProcessingJob) Close() error {
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
