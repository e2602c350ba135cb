package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jetstream-aero/embedq/common"
	"github.com/jetstream-aero/embedq/configs"
	"github.com/jetstream-aero/embedq/db"
	"github.com/jetstream-aero/embedq/indexer"
	"github.com/jetstream-aero/embedq/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProcessorStore is the slice of the repository one processing pass needs.
type ProcessorStore interface {
	SelectEligibleItems(limit int, ctx context.Context) ([]db.QueueItem, error)
	ClaimItem(itemId string, ctx context.Context) (bool, error)
	MarkItemCompleted(itemId string, ctx context.Context) error
	MarkItemFailed(itemId string, errorMessage string, ctx context.Context) error
	InsertAuditEntry(entry *db.NewAuditEntry, ctx context.Context) error
}

// Indexer performs the downstream single-entity indexing call.
type Indexer interface {
	IndexObject(objectType string, objectId string, ctx context.Context) indexer.Result
}

type ProcessorService struct {
	store          ProcessorStore
	indexerClient  Indexer
	appConfigs     *configs.AppConfigs
	metricsService metrics.Service
}

func NewProcessorService(store ProcessorStore, indexerClient Indexer, appConfigs *configs.AppConfigs, metricsService metrics.Service) *ProcessorService {
	return &ProcessorService{
		store:          store,
		indexerClient:  indexerClient,
		appConfigs:     appConfigs,
		metricsService: metricsService,
	}
}

// ProcessBatch runs one processing pass: select an eligible batch, fan out over
// its items, and aggregate the outcomes. A (nil, nil) return means nothing was
// processed, which is a valid result, not an error. Only a failing eligibility
// select fails the whole pass.
func (ps *ProcessorService) ProcessBatch(trigger common.TriggerRequest, ctx context.Context) (*common.BatchReport, error) {
	batchSize := trigger.BatchSize
	if batchSize <= 0 {
		batchSize = ps.appConfigs.DefaultBatchSize
	}
	if batchSize > ps.appConfigs.MaxBatchSize {
		batchSize = ps.appConfigs.MaxBatchSize
	}
	source := trigger.Source
	if source == "" {
		source = common.ManualTriggerSource
	}

	start := time.Now()

	items, err := ps.store.SelectEligibleItems(batchSize, ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		log.Debug().Str("source", source).Msg("no eligible items in the embedding queue")
		return nil, nil
	}

	// fan out over the batch: items are independent, one failure never stops the others
	processed := make([]*common.ItemResult, len(items))
	eg := errgroup.Group{}
	eg.SetLimit(ps.appConfigs.WorkerLimit)
	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			processed[i] = ps.processItem(item, ctx)
			return nil
		})
	}
	eg.Wait()

	var results []common.ItemResult
	successCount := 0
	var itemTimeTotalMs int64
	for _, result := range processed {
		if result == nil {
			// lost the claim race to an overlapping pass, not counted
			continue
		}
		results = append(results, *result)
		if result.Success {
			successCount++
		}
		itemTimeTotalMs += result.ProcessingTimeMs
	}

	if len(results) == 0 {
		log.Debug().Str("source", source).Int("selected", len(items)).Msg("all selected items were claimed by a concurrent pass")
		return nil, nil
	}

	failureCount := len(results) - successCount
	totalMs := time.Since(start).Milliseconds()

	ps.metricsService.IncBatchesTotalBy(1, source)
	ps.metricsService.IncItemsProcessedTotalBy(int64(successCount), metrics.SuccessOutcome)
	ps.metricsService.IncItemsProcessedTotalBy(int64(failureCount), metrics.FailureOutcome)

	log.Info().
		Str("source", source).
		Int("processed", len(results)).
		Int("succeeded", successCount).
		Int("failed", failureCount).
		Int64("total_ms", totalMs).
		Msg("embedding queue pass finished")

	return &common.BatchReport{
		Message:                     fmt.Sprintf("Processed %d items from the embedding queue", len(results)),
		SuccessCount:                successCount,
		FailureCount:                failureCount,
		SuccessRate:                 float64(successCount) / float64(len(results)),
		TotalProcessingTimeMs:       totalMs,
		AverageItemProcessingTimeMs: itemTimeTotalMs / int64(len(results)),
		Results:                     results,
	}, nil
}

// processItem attempts exactly one item: claim it, call the indexer once, record
// the terminal state and an audit entry. Returns nil when the claim was lost to a
// concurrent pass.
func (ps *ProcessorService) processItem(item db.QueueItem, ctx context.Context) *common.ItemResult {
	claimed, err := ps.store.ClaimItem(item.Id, ctx)
	if err != nil {
		// the downstream call never happened, report the item as failed without
		// touching its stored state
		return &common.ItemResult{
			Id:         item.Id,
			ObjectId:   item.ObjectId,
			ObjectType: item.ObjectType,
			Error:      err.Error(),
		}
	}
	if !claimed {
		log.Debug().Str("item_id", item.Id).Msg("item no longer claimable, skipping")
		return nil
	}

	itemStart := time.Now()
	result := ps.indexerClient.IndexObject(item.ObjectType, item.ObjectId, ctx)
	elapsed := time.Since(itemStart)
	elapsedMs := elapsed.Milliseconds()

	ps.metricsService.ObserveItemProcessingTime(item.ObjectType, elapsed)

	if result.Success {
		if err := ps.store.MarkItemCompleted(item.Id, ctx); err != nil {
			// the index write went through, so report success; stale recovery
			// will settle the row if it stayed in processing
			log.Error().Err(err).Str("item_id", item.Id).Msg("failed to record item completion")
		}
		ps.writeAuditEntry(item, true, elapsedMs, nil, ctx)
		return &common.ItemResult{
			Id:               item.Id,
			ObjectId:         item.ObjectId,
			ObjectType:       item.ObjectType,
			Success:          true,
			ProcessingTimeMs: elapsedMs,
		}
	}

	if err := ps.store.MarkItemFailed(item.Id, result.Message, ctx); err != nil {
		log.Error().Err(err).Str("item_id", item.Id).Msg("failed to record item failure")
	}
	ps.writeAuditEntry(item, false, elapsedMs, &result.Message, ctx)
	return &common.ItemResult{
		Id:               item.Id,
		ObjectId:         item.ObjectId,
		ObjectType:       item.ObjectType,
		ProcessingTimeMs: elapsedMs,
		Error:            result.Message,
	}
}

func (ps *ProcessorService) writeAuditEntry(item db.QueueItem, success bool, processingTimeMs int64, errorMessage *string, ctx context.Context) {
	entry := db.NewAuditEntry{
		ObjectId:         item.ObjectId,
		ObjectType:       item.ObjectType,
		Success:          success,
		ProcessingTimeMs: processingTimeMs,
		ErrorMessage:     errorMessage,
	}

	// audit history is best effort, a failed write never affects the item outcome
	if err := ps.store.InsertAuditEntry(&entry, ctx); err != nil {
		log.Warn().Err(err).Str("item_id", item.Id).Msg("failed to write audit log entry")
	}
}
