package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jetstream-aero/embedq/common"
	"github.com/jetstream-aero/embedq/configs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type EmbedqRepo struct {
	pool       *pgxpool.Pool
	appConfigs *configs.AppConfigs
}

func NewPostgresRepo(databaseURL string, appConfigs *configs.AppConfigs, ctx context.Context) (*EmbedqRepo, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &EmbedqRepo{
		pool:       pool,
		appConfigs: appConfigs,
	}, nil
}

func (er *EmbedqRepo) InsertItem(newItem *NewItem, ctx context.Context) error {
	query := `
		INSERT INTO embedding_queue (id, object_id, object_type, status, attempts, priority, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, now());`

	_, err := er.pool.Exec(ctx, query,
		newItem.Id,           // id
		newItem.ObjectId,     // object_id
		newItem.ObjectType,   // object_type
		common.PendingStatus, // status
		newItem.Priority,     // priority
	)
	if err != nil {
		log.Error().Err(err).Str("object_type", newItem.ObjectType).Msg("failed to insert new queue item")
		return common.ErrInternal
	}
	return nil
}

// SelectEligibleItems returns up to limit items safe to attempt now: pending items,
// plus failed items that still have retry budget and whose backoff window has
// elapsed. Read-only; claiming happens per item in ClaimItem.
func (er *EmbedqRepo) SelectEligibleItems(limit int, ctx context.Context) ([]QueueItem, error) {
	query := `
		SELECT id, object_id, object_type, status, attempts, priority, created_at, last_attempted_at
		FROM embedding_queue
		WHERE (status = $1 OR (status = $2 AND attempts < $3))
		  AND (last_attempted_at IS NULL
		       OR last_attempted_at + least($4 * power(2, attempts - 1), $5) * interval '1 millisecond' <= now())
		ORDER BY priority DESC, created_at ASC
		LIMIT $6;`

	rows, err := er.pool.Query(ctx, query,
		common.PendingStatus,                       // status = $1
		common.FailedStatus,                        // OR (status = $2
		er.appConfigs.MaxRetries,                   // AND attempts < $3)
		er.appConfigs.BackoffBase.Milliseconds(),   // least($4 * power(2, attempts - 1),
		er.appConfigs.BackoffMax.Milliseconds(),    // $5)
		limit,                                      // LIMIT $6
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to select eligible queue items")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		var item QueueItem
		err := rows.Scan(&item.Id, &item.ObjectId, &item.ObjectType, &item.Status, &item.Attempts, &item.Priority, &item.CreatedAt, &item.LastAttemptedAt)
		if err != nil {
			log.Error().Err(err).Msg("failed to scan eligible queue item")
			return nil, common.ErrInternal
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to read eligible queue items")
		return nil, common.ErrInternal
	}
	return items, nil
}

// ClaimItem transitions an item to processing and charges one attempt. The status
// guard makes the claim conditional: two overlapping passes can both select an
// item, but only one claim succeeds. Returns false when the item was already
// claimed (or reached a terminal state) since selection.
func (er *EmbedqRepo) ClaimItem(itemId string, ctx context.Context) (bool, error) {
	query := `
		UPDATE embedding_queue
		SET
		    status = $1,
		    attempts = attempts + 1,
		    last_attempted_at = now()
		WHERE id = $2 AND status IN ($3, $4);`

	result, err := er.pool.Exec(ctx, query,
		common.ProcessingStatus, // SET status = $1
		itemId,                  // WHERE id = $2
		common.PendingStatus,    // AND status IN ($3,
		common.FailedStatus,     // $4)
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to claim queue item")
		return false, common.ErrInternal
	}
	return result.RowsAffected() == 1, nil
}

func (er *EmbedqRepo) MarkItemCompleted(itemId string, ctx context.Context) error {
	query := `
		UPDATE embedding_queue
		SET
		    status = $1,
		    processed_at = now(),
		    error_message = NULL
		WHERE id = $2 AND status = $3;`

	result, err := er.pool.Exec(ctx, query,
		common.CompletedStatus,  // SET status = $1
		itemId,                  // WHERE id = $2
		common.ProcessingStatus, // AND status = $3
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to mark queue item completed")
		return common.ErrInternal
	}

	if result.RowsAffected() == 0 {
		log.Warn().Str("item_id", itemId).Msg("no rows updated on completion, item was not in processing state")
		return common.ErrNotFoundItem
	}
	return nil
}

func (er *EmbedqRepo) MarkItemFailed(itemId string, errorMessage string, ctx context.Context) error {
	query := `
		UPDATE embedding_queue
		SET
		    status = $1,
		    error_message = $2
		WHERE id = $3 AND status = $4;`

	result, err := er.pool.Exec(ctx, query,
		common.FailedStatus,     // SET status = $1
		errorMessage,            // error_message = $2
		itemId,                  // WHERE id = $3
		common.ProcessingStatus, // AND status = $4
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemId).Msg("failed to mark queue item failed")
		return common.ErrInternal
	}

	if result.RowsAffected() == 0 {
		log.Warn().Str("item_id", itemId).Msg("no rows updated on failure, item was not in processing state")
		return common.ErrNotFoundItem
	}
	return nil
}

func (er *EmbedqRepo) InsertAuditEntry(entry *NewAuditEntry, ctx context.Context) error {
	query := `
		INSERT INTO embedding_audit_log (object_id, object_type, success, processing_time_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, now());`

	_, err := er.pool.Exec(ctx, query,
		entry.ObjectId,         // object_id
		entry.ObjectType,       // object_type
		entry.Success,          // success
		entry.ProcessingTimeMs, // processing_time_ms
		entry.ErrorMessage,     // error_message
	)
	if err != nil {
		log.Error().Err(err).Str("object_id", entry.ObjectId).Msg("failed to insert audit log entry")
		return common.ErrInternal
	}
	return nil
}

func (er *EmbedqRepo) SelectQueueStats(ctx context.Context) (*QueueStats, error) {
	query := `
		SELECT
		    count(*) FILTER (WHERE status = $1),
		    count(*) FILTER (WHERE status = $2),
		    count(*) FILTER (WHERE status = $3),
		    count(*) FILTER (WHERE status = $4),
		    count(*) FILTER (WHERE status = $4 AND attempts >= $5)
		FROM embedding_queue;`

	var stats QueueStats
	err := er.pool.QueryRow(ctx, query,
		common.PendingStatus,     // FILTER (WHERE status = $1)
		common.ProcessingStatus,  // FILTER (WHERE status = $2)
		common.CompletedStatus,   // FILTER (WHERE status = $3)
		common.FailedStatus,      // FILTER (WHERE status = $4)
		er.appConfigs.MaxRetries, // AND attempts >= $5
	).Scan(&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed, &stats.DeadLettered)

	if errors.Is(err, pgx.ErrNoRows) {
		return &QueueStats{}, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to select queue stats")
		return nil, common.ErrInternal
	}
	return &stats, nil
}

// RecoverStaleItems flips items stuck in processing (a pass crashed mid-call) to
// failed, so the regular backoff cycle picks them up again. The attempt was
// already charged at claim time, so only the status moves.
func (er *EmbedqRepo) RecoverStaleItems(ctx context.Context) (int64, error) {
	query := `
		UPDATE embedding_queue
		SET
		    status = $1,
		    error_message = $2
		WHERE status = $3 AND last_attempted_at < now() - $4 * interval '1 millisecond';`

	result, err := er.pool.Exec(ctx, query,
		common.FailedStatus,                             // SET status = $1
		common.StaleProcessingFailureReason,             // error_message = $2
		common.ProcessingStatus,                         // WHERE status = $3
		er.appConfigs.MaxProcessingTime.Milliseconds(),  // now() - $4 * interval '1 millisecond'
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (er *EmbedqRepo) Close() {
	er.pool.Close()
}
