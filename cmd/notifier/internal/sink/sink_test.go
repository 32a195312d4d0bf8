package sink_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/sink"
	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/testutils"
	"github.com/shubham-shewale/stock-notifier/pkg/models"
)

func TestTrader_CountsNotifications(t *testing.T) {
	tr := sink.NewTrader("Trader 1", zap.NewNop())

	require.NoError(t, tr.OnEvent(context.Background(), "AAPL", 150.00))
	require.NoError(t, tr.OnEvent(context.Background(), "GOOGL", 2800.00))

	assert.Equal(t, "Trader 1", tr.Name())
	assert.EqualValues(t, 2, tr.Received())
}

func TestSnapshotWriter_SetAndGet(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	w := sink.NewSnapshotWriter(rdb)
	ctx := context.Background()

	require.NoError(t, w.OnEvent(ctx, "GOOG", 1500.50))

	if !mr.Exists("stock:GOOG") {
		t.Fatal("SnapshotWriter did not write stock:GOOG to Redis")
	}
	assert.Equal(t, time.Hour, mr.TTL("stock:GOOG"))

	snaps, err := w.GetSnapshots(ctx, []string{"GOOG", "MISSING"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	var snap models.PriceSnapshot
	require.NoError(t, json.Unmarshal([]byte(snaps[0]), &snap))
	assert.Equal(t, "GOOG", snap.Symbol)
	assert.Equal(t, 1500.50, snap.Price)

	snaps, err = w.GetSnapshots(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSnapshotWriter_RedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	err := sink.NewSnapshotWriter(rdb).OnEvent(context.Background(), "GOOG", 1)
	assert.Error(t, err)
}

func TestAlertForwarder_Threshold(t *testing.T) {
	writer := &testutils.MockKafkaWriter{}
	a := sink.NewAlertForwarder(zap.NewNop(), writer, 0.05)
	ctx := context.Background()

	require.NoError(t, a.OnEvent(ctx, "TSLA", 100))   // first tick, no baseline
	require.NoError(t, a.OnEvent(ctx, "TSLA", 102))   // +2%
	require.NoError(t, a.OnEvent(ctx, "TSLA", 96.0))  // -5.9%
	require.NoError(t, a.OnEvent(ctx, "AAPL", 150.0)) // other symbol baseline

	require.Equal(t, 1, writer.Count())

	var alert models.PriceAlert
	require.NoError(t, json.Unmarshal(writer.Messages[0].Value, &alert))
	assert.Equal(t, "TSLA", string(writer.Messages[0].Key))
	assert.Equal(t, 102.0, alert.Previous)
	assert.Equal(t, 96.0, alert.Price)
	assert.InDelta(t, -0.0588, alert.Change, 0.001)
}

func TestAlertForwarder_WriteFailure(t *testing.T) {
	writer := &testutils.MockKafkaWriter{ShouldFail: true}
	a := sink.NewAlertForwarder(zap.NewNop(), writer, 0.01)
	ctx := context.Background()

	require.NoError(t, a.OnEvent(ctx, "AMZN", 3400))
	assert.Error(t, a.OnEvent(ctx, "AMZN", 3000))
}

func TestAlertForwarder_Disabled(t *testing.T) {
	writer := &testutils.MockKafkaWriter{}
	a := sink.NewAlertForwarder(zap.NewNop(), writer, 0)
	ctx := context.Background()

	require.NoError(t, a.OnEvent(ctx, "AMZN", 3400))
	require.NoError(t, a.OnEvent(ctx, "AMZN", 1))
	assert.Equal(t, 0, writer.Count())
}
