package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jetstream-aero/embedq/common"
	"github.com/jetstream-aero/embedq/configs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a real Postgres; set EMBEDQ_TEST_DATABASE_URL to run them.

func setupTestRepo(t *testing.T) *EmbedqRepo {
	t.Helper()

	databaseURL := os.Getenv("EMBEDQ_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("EMBEDQ_TEST_DATABASE_URL is not set, skipping integration tests")
	}

	appConfigs := &configs.AppConfigs{
		MaxRetries:        5,
		BackoffBase:       5 * time.Minute,
		BackoffMax:        24 * time.Hour,
		MaxProcessingTime: 5 * time.Minute,
	}

	repo, err := NewPostgresRepo(databaseURL, appConfigs, context.Background())
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	applySchema(t, repo)

	_, err = repo.pool.Exec(context.Background(), "TRUNCATE embedding_queue, embedding_audit_log;")
	require.NoError(t, err)

	return repo
}

func applySchema(t *testing.T, repo *EmbedqRepo) {
	t.Helper()

	entries, err := os.ReadDir("migrations")
	require.NoError(t, err)

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		ddl, err := os.ReadFile(filepath.Join("migrations", name))
		require.NoError(t, err)
		_, err = repo.pool.Exec(context.Background(), string(ddl))
		require.NoError(t, err, "applying %s", name)
	}
}

type storedItem struct {
	Status          string
	Attempts        int
	LastAttemptedAt *time.Time
	ProcessedAt     *time.Time
	ErrorMessage    *string
}

func fetchItem(t *testing.T, repo *EmbedqRepo, itemId string) storedItem {
	t.Helper()

	var item storedItem
	err := repo.pool.QueryRow(context.Background(),
		"SELECT status, attempts, last_attempted_at, processed_at, error_message FROM embedding_queue WHERE id = $1",
		itemId,
	).Scan(&item.Status, &item.Attempts, &item.LastAttemptedAt, &item.ProcessedAt, &item.ErrorMessage)
	require.NoError(t, err)
	return item
}

func seedItem(t *testing.T, repo *EmbedqRepo, status string, attempts int, priority int, lastAttemptedAgo time.Duration) string {
	t.Helper()

	itemId := uuid.NewString()
	var lastAttemptedAt *time.Time
	if lastAttemptedAgo > 0 {
		at := time.Now().Add(-lastAttemptedAgo)
		lastAttemptedAt = &at
	}
	_, err := repo.pool.Exec(context.Background(),
		`INSERT INTO embedding_queue (id, object_id, object_type, status, attempts, priority, created_at, last_attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		itemId, fmt.Sprintf("object-%s", itemId[:8]), common.OfferObjectType, status, attempts, priority, lastAttemptedAt,
	)
	require.NoError(t, err)
	return itemId
}

func eligibleIds(t *testing.T, repo *EmbedqRepo, limit int) []string {
	t.Helper()

	items, err := repo.SelectEligibleItems(limit, context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Id)
	}
	return ids
}

func TestInsertItemIsEligibleImmediately(t *testing.T) {
	repo := setupTestRepo(t)

	newItem := NewItem{Id: uuid.NewString(), ObjectId: "offer-1", ObjectType: common.OfferObjectType, Priority: 0}
	require.NoError(t, repo.InsertItem(&newItem, context.Background()))

	ids := eligibleIds(t, repo, 10)
	assert.Equal(t, []string{newItem.Id}, ids)

	item := fetchItem(t, repo, newItem.Id)
	assert.Equal(t, common.PendingStatus, item.Status)
	assert.Equal(t, 0, item.Attempts)
	assert.Nil(t, item.LastAttemptedAt)
}

func TestSelectEligibleItemsOrdering(t *testing.T) {
	repo := setupTestRepo(t)

	low := seedItem(t, repo, common.PendingStatus, 0, 0, 0)
	high := seedItem(t, repo, common.PendingStatus, 0, 10, 0)
	mid := seedItem(t, repo, common.PendingStatus, 0, 5, 0)

	ids := eligibleIds(t, repo, 10)
	assert.Equal(t, []string{high, mid, low}, ids, "priority descending, then oldest first")
}

func TestSelectEligibleItemsRespectsLimit(t *testing.T) {
	repo := setupTestRepo(t)

	for i := 0; i < 5; i++ {
		seedItem(t, repo, common.PendingStatus, 0, 0, 0)
	}

	assert.Len(t, eligibleIds(t, repo, 3), 3)
}

func TestDeadLetterItemsNeverSelected(t *testing.T) {
	repo := setupTestRepo(t)

	// attempts exhausted long ago, elapsed time is irrelevant
	seedItem(t, repo, common.FailedStatus, 5, 0, 240*time.Hour)
	seedItem(t, repo, common.FailedStatus, 7, 0, 240*time.Hour)

	assert.Empty(t, eligibleIds(t, repo, 10))
}

func TestBackoffWindowGatesFailedItems(t *testing.T) {
	repo := setupTestRepo(t)

	seedItem(t, repo, common.FailedStatus, 1, 0, time.Minute) // still cooling
	cooled := seedItem(t, repo, common.FailedStatus, 1, 0, 6*time.Minute)
	seedItem(t, repo, common.FailedStatus, 2, 0, 6*time.Minute) // needs 10m after second attempt

	// backoff(1) = 5m, backoff(2) = 10m
	assert.Equal(t, []string{cooled}, eligibleIds(t, repo, 10))
}

func TestCompletedItemsNeverSelected(t *testing.T) {
	repo := setupTestRepo(t)

	seedItem(t, repo, common.CompletedStatus, 1, 0, time.Hour)

	assert.Empty(t, eligibleIds(t, repo, 10))
}

func TestClaimItemIsConditional(t *testing.T) {
	repo := setupTestRepo(t)

	itemId := seedItem(t, repo, common.PendingStatus, 0, 0, 0)

	claimed, err := repo.ClaimItem(itemId, context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	item := fetchItem(t, repo, itemId)
	assert.Equal(t, common.ProcessingStatus, item.Status)
	assert.Equal(t, 1, item.Attempts)
	require.NotNil(t, item.LastAttemptedAt)
	assert.LessOrEqual(t, item.LastAttemptedAt.Unix(), time.Now().Unix())

	// a second, overlapping pass loses the race
	claimedAgain, err := repo.ClaimItem(itemId, context.Background())
	require.NoError(t, err)
	assert.False(t, claimedAgain)
}

func TestMarkItemCompleted(t *testing.T) {
	repo := setupTestRepo(t)

	itemId := seedItem(t, repo, common.PendingStatus, 0, 0, 0)
	_, err := repo.ClaimItem(itemId, context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.MarkItemCompleted(itemId, context.Background()))

	item := fetchItem(t, repo, itemId)
	assert.Equal(t, common.CompletedStatus, item.Status)
	assert.NotNil(t, item.ProcessedAt)
	assert.Nil(t, item.ErrorMessage)

	// terminal: never selected again
	assert.Empty(t, eligibleIds(t, repo, 10))
}

func TestMarkItemFailed(t *testing.T) {
	repo := setupTestRepo(t)

	itemId := seedItem(t, repo, common.PendingStatus, 0, 0, 0)
	_, err := repo.ClaimItem(itemId, context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.MarkItemFailed(itemId, "indexing endpoint returned status 500", context.Background()))

	item := fetchItem(t, repo, itemId)
	assert.Equal(t, common.FailedStatus, item.Status)
	require.NotNil(t, item.ErrorMessage)
	assert.Equal(t, "indexing endpoint returned status 500", *item.ErrorMessage)
	assert.Nil(t, item.ProcessedAt)

	// fresh failure: still cooling down
	assert.Empty(t, eligibleIds(t, repo, 10))
}

func TestMarkItemRequiresProcessingState(t *testing.T) {
	repo := setupTestRepo(t)

	itemId := seedItem(t, repo, common.PendingStatus, 0, 0, 0)

	assert.ErrorIs(t, repo.MarkItemCompleted(itemId, context.Background()), common.ErrNotFoundItem)
	assert.ErrorIs(t, repo.MarkItemFailed(itemId, "x", context.Background()), common.ErrNotFoundItem)
}

func TestRecoverStaleItems(t *testing.T) {
	repo := setupTestRepo(t)

	stale := seedItem(t, repo, common.ProcessingStatus, 1, 0, 10*time.Minute)
	fresh := seedItem(t, repo, common.ProcessingStatus, 1, 0, time.Minute)

	recovered, err := repo.RecoverStaleItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	staleItem := fetchItem(t, repo, stale)
	assert.Equal(t, common.FailedStatus, staleItem.Status)
	require.NotNil(t, staleItem.ErrorMessage)
	assert.Equal(t, common.StaleProcessingFailureReason, *staleItem.ErrorMessage)

	freshItem := fetchItem(t, repo, fresh)
	assert.Equal(t, common.ProcessingStatus, freshItem.Status)
}

func TestSelectQueueStats(t *testing.T) {
	repo := setupTestRepo(t)

	seedItem(t, repo, common.PendingStatus, 0, 0, 0)
	seedItem(t, repo, common.PendingStatus, 0, 0, 0)
	seedItem(t, repo, common.ProcessingStatus, 1, 0, time.Minute)
	seedItem(t, repo, common.CompletedStatus, 1, 0, time.Hour)
	seedItem(t, repo, common.FailedStatus, 2, 0, time.Hour)
	seedItem(t, repo, common.FailedStatus, 5, 0, time.Hour) // dead-lettered

	stats, err := repo.SelectQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Processing)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.DeadLettered)
}

func TestInsertAuditEntry(t *testing.T) {
	repo := setupTestRepo(t)

	errorMessage := "boom"
	entry := NewAuditEntry{
		ObjectId:         "offer-1",
		ObjectType:       common.OfferObjectType,
		Success:          false,
		ProcessingTimeMs: 123,
		ErrorMessage:     &errorMessage,
	}
	require.NoError(t, repo.InsertAuditEntry(&entry, context.Background()))

	var count int
	err := repo.pool.QueryRow(context.Background(),
		"SELECT count(*) FROM embedding_audit_log WHERE object_id = $1 AND success = FALSE AND processing_time_ms = 123",
		"offer-1",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
