package tests

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/feed"
	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/sink"
	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/testutils"
	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
	"github.com/shubham-shewale/stock-notifier/pkg/models"
)

func TestNotifier_EndToEnd_Flow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var msgs []kafka.Message
	for i, u := range []models.StockUpdate{
		{Symbol: "AAPL", Price: 150.00, SeqID: 1},
		{Symbol: "GOOGL", Price: 2800.00, SeqID: 1},
		{Symbol: "GOOGL", Price: 2500.00, SeqID: 2},
	} {
		val, err := json.Marshal(u)
		require.NoError(t, err, "update %d", i)
		msgs = append(msgs, kafka.Message{Key: []byte(u.Symbol), Value: val})
	}
	reader := &testutils.MockKafkaReader{Messages: msgs}
	alerts := &testutils.MockKafkaWriter{}

	var (
		mu       sync.Mutex
		failures []error
	)
	b := broadcast.New(
		broadcast.WithWorkers(4),
		broadcast.WithOrderedDelivery(true),
		broadcast.WithLogger(zap.NewNop()),
		broadcast.WithErrorHandler(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, err)
		}),
	)

	t1 := sink.NewTrader("T1", zap.NewNop())
	t2 := sink.NewTrader("T2", zap.NewNop())
	for _, s := range []broadcast.Subscriber{
		t1, t2,
		sink.NewSnapshotWriter(rdb),
		sink.NewAlertForwarder(zap.NewNop(), alerts, 0.05),
	} {
		require.NoError(t, b.AddObserver(s))
	}

	require.NoError(t, feed.NewKafkaFeed(zap.NewNop(), reader, b).Run(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Shutdown(ctx))

	assert.EqualValues(t, 3, t1.Received())
	assert.EqualValues(t, 3, t2.Received())
	mu.Lock()
	assert.Empty(t, failures)
	mu.Unlock()

	saved, err := mr.Get("stock:AAPL")
	require.NoError(t, err)
	var snap models.PriceSnapshot
	require.NoError(t, json.Unmarshal([]byte(saved), &snap))
	assert.Equal(t, 150.00, snap.Price)
	assert.True(t, mr.Exists("stock:GOOGL"))

	// Only the GOOGL drop of ~10.7% crosses the 5% threshold
	assert.Equal(t, 1, alerts.Count())

	stats := b.Stats()
	assert.EqualValues(t, 3, stats.Published)
	assert.EqualValues(t, 12, stats.Delivered)
}
