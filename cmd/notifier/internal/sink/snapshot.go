package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shubham-shewale/stock-notifier/pkg/models"
)

const (
	keyPrefix   = "stock:"
	snapshotTTL = 1 * time.Hour // TTL prevents unbounded memory growth
)

// SnapshotWriter keeps the latest price of every symbol in Redis under
// stock:<SYMBOL> and serves them back to late joiners.
type SnapshotWriter struct {
	rdb RedisClient
	now func() time.Time
}

func NewSnapshotWriter(rdb RedisClient) *SnapshotWriter {
	return &SnapshotWriter{rdb: rdb, now: time.Now}
}

func (w *SnapshotWriter) OnEvent(ctx context.Context, symbol string, value float64) error {
	payload, err := json.Marshal(models.PriceSnapshot{
		Symbol:    symbol,
		Price:     value,
		UpdatedAt: w.now().UnixMicro(),
	})
	if err != nil {
		return err
	}

	if err := w.rdb.Set(ctx, keyPrefix+symbol, payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", symbol, err)
	}
	return nil
}

// GetSnapshots fetches the stored snapshots for symbols (MGET). Missing symbols are skipped.
func (w *SnapshotWriter) GetSnapshots(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = keyPrefix + sym
	}

	results, err := w.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}
