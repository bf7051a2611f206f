package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMemoryRecorder_HistoryNewestFirst(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.Record(ctx, &Entry{OrderID: 1, Action: ActionPlaced, CreatedAt: base}))
	require.NoError(t, r.Record(ctx, &Entry{OrderID: 2, Action: ActionPlaced, CreatedAt: base}))
	require.NoError(t, r.Record(ctx, &Entry{OrderID: 1, Action: ActionItemCancelled, CreatedAt: base.Add(time.Hour)}))

	got, err := r.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ActionItemCancelled, got[0].Action)
	assert.Equal(t, ActionPlaced, got[1].Action)

	got, err = r.History(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMongoRecorder(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("record", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		r := NewMongoRecorderFromCollection(mt.Coll)
		r.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }

		e := &Entry{OrderID: 42, UserID: 7, Actor: "user:7", Action: ActionPlaced}
		require.NoError(t, r.Record(context.Background(), e))
		assert.False(t, e.CreatedAt.IsZero())
	})

	mt.Run("history", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "order_id", Value: int64(42)},
			{Key: "action", Value: string(ActionReturnAccepted)},
			{Key: "actor", Value: "admin:1"},
		})
		end := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, end)

		r := NewMongoRecorderFromCollection(mt.Coll)
		got, err := r.History(context.Background(), 42, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ActionReturnAccepted, got[0].Action)
		assert.Equal(t, int64(42), got[0].OrderID)
	})
}
