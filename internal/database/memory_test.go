package database

import (
	"context"
	"testing"

	"relayq/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	msg := testMessage("msg-1", 1000)
	require.NoError(t, store.Put(ctx, msg))

	got, err := store.Get(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, msg.ConversationID, got.ConversationID)

	require.NoError(t, store.Delete(ctx, "msg-1"))
	require.NoError(t, store.Delete(ctx, "msg-1"))

	got, err = store.Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreGet_ReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testMessage("msg-1", 1000)))

	got, err := store.Get(ctx, "msg-1")
	require.NoError(t, err)
	got.Status = models.MessageStatusFailed

	fresh, err := store.Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusPending, fresh.Status)
}

func TestMemoryStoreQueryUnsynced_Order(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testMessage("msg-c", 3000)))
	require.NoError(t, store.Put(ctx, testMessage("msg-a", 1000)))
	require.NoError(t, store.Put(ctx, testMessage("tie-1", 2000)))
	require.NoError(t, store.Put(ctx, testMessage("tie-2", 2000)))

	msgs, err := store.QueryUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, "msg-a", msgs[0].ID)
	assert.Equal(t, "tie-1", msgs[1].ID)
	assert.Equal(t, "tie-2", msgs[2].ID)
	assert.Equal(t, "msg-c", msgs[3].ID)
}

func TestMemoryStoreCountsAndDeleteSynced(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testMessage("pending", 1000)))

	failed := testMessage("failed", 2000)
	failed.Status = models.MessageStatusFailed
	require.NoError(t, store.Put(ctx, failed))

	synced := testMessage("synced", 3000)
	synced.Status = models.MessageStatusSent
	synced.Synced = true
	require.NoError(t, store.Put(ctx, synced))

	count, err := store.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	failedCount, err := store.CountUnsyncedByStatus(ctx, models.MessageStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failedCount)

	removed, err := store.DeleteSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := store.Get(ctx, "synced")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testMessage("msg-1", 1000)))
	require.NoError(t, store.Put(ctx, testMessage("msg-2", 2000)))

	require.NoError(t, store.Clear(ctx))

	count, err := store.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
