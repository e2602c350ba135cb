package recovery

import (
	"context"
	"time"

	"github.com/jetstream-aero/embedq/metrics"

	"github.com/rs/zerolog/log"
)

type staleItemsStore interface {
	RecoverStaleItems(ctx context.Context) (int64, error)
}

// StaleItemsRecoveryJob settles items a crashed pass left in processing: they are
// flipped to failed, so the backoff cycle picks them up again.
type StaleItemsRecoveryJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewStaleItemsRecoveryJob(store staleItemsStore, metricsService metrics.Service, interval time.Duration) *StaleItemsRecoveryJob {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), tickTimeout(interval))
				recovered, err := store.RecoverStaleItems(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to recover stale queue items")
				} else if recovered > 0 {
					metricsService.IncItemsStaleRecoveredTotalBy(recovered)
					log.Warn().Int64("recovered", recovered).Msg("recovered stale queue items")
				}
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &StaleItemsRecoveryJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *StaleItemsRecoveryJob) Close() error {
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
