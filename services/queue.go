package services

import (
	"context"

	"github.com/jetstream-aero/embedq/common"
	"github.com/jetstream-aero/embedq/db"
	"github.com/jetstream-aero/embedq/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// QueueStore is the slice of the repository the enqueue/stats surface needs.
type QueueStore interface {
	InsertItem(newItem *db.NewItem, ctx context.Context) error
	SelectQueueStats(ctx context.Context) (*db.QueueStats, error)
}

type QueueService struct {
	store          QueueStore
	metricsService metrics.Service
}

func NewQueueService(store QueueStore, metricsService metrics.Service) *QueueService {
	return &QueueService{
		store:          store,
		metricsService: metricsService,
	}
}

func (qs *QueueService) EnqueueItem(newItem common.NewItemRequest, ctx context.Context) (string, error) {
	if newItem.ObjectId == "" {
		log.Error().Msg("enqueue request without object_id")
		return "", common.ErrBadRequestMissingObjectId
	}
	if !common.SupportedObjectTypes[newItem.ObjectType] {
		log.Error().Str("object_type", newItem.ObjectType).Msg("enqueue request with unknown object_type")
		return "", common.ErrBadRequestUnknownObjectType
	}

	itemId, err := uuid.NewV7()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate new queue item ID")
		return "", common.ErrInternal
	}

	itemToInsert := db.NewItem{
		Id:         itemId.String(),
		ObjectId:   newItem.ObjectId,
		ObjectType: newItem.ObjectType,
		Priority:   newItem.Priority,
	}

	if err = qs.store.InsertItem(&itemToInsert, ctx); err != nil {
		return "", err
	}

	qs.metricsService.IncItemsEnqueuedTotalBy(1, newItem.ObjectType)
	return itemToInsert.Id, nil
}

func (qs *QueueService) GetQueueStats(ctx context.Context) (*common.QueueStatsResponse, error) {
	stats, err := qs.store.SelectQueueStats(ctx)
	if err != nil {
		return nil, err
	}

	return &common.QueueStatsResponse{
		Pending:      stats.Pending,
		Processing:   stats.Processing,
		Completed:    stats.Completed,
		Failed:       stats.Failed,
		DeadLettered: stats.DeadLettered,
		Total:        stats.Pending + stats.Processing + stats.Completed + stats.Failed,
	}, nil
}
