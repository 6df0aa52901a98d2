package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// Без TEST_MONGO_URI тест пропускается
func TestMongoStoreFeed(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI не задан")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("bookswap_test_" + uuid.NewString()[:8])
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	store := NewMongoStore(db)
	require.NoError(t, store.EnsureIndexes(ctx))

	alice, bob := uuid.New(), uuid.New()
	exchangeID := uuid.New()
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Notify(ctx, []models.Notification{
		{UserID: alice, Type: models.NotifyNewRequest, ExchangeID: exchangeID, CreatedAt: base},
		{UserID: bob, Type: models.NotifyCounterOffer, CreatedAt: base.Add(time.Second)},
		{UserID: alice, Type: models.NotifyAccepted, Message: "ok", CreatedAt: base.Add(2 * time.Second)},
	}))

	list, err := store.List(ctx, alice, 10, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.NotifyAccepted, list[0].Type)
	assert.Equal(t, "ok", list[0].Message)
	assert.Equal(t, exchangeID, list[1].ExchangeID)
	assert.Equal(t, alice, list[1].UserID)

	n, err := store.MarkRead(ctx, alice, []string{list[1].ID, "not-an-object-id"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err := store.List(ctx, alice, 10, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, list[0].ID, unread[0].ID)

	n, err = store.MarkRead(ctx, bob, []string{list[0].ID})
	require.NoError(t, err)
	assert.Zero(t, n, "чужое уведомление не трогаем")

	n, err = store.MarkRead(ctx, alice, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := store.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, count)
}
