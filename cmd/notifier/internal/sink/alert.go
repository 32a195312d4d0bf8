package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/pkg/models"
)

// AlertForwarder writes a PriceAlert to Kafka whenever a symbol moves by at
// least threshold (relative) since its previous tick. The baseline is only
// right if ticks arrive in publish order, so register it on a broadcaster
// built WithOrderedDelivery. OnEvent may still run concurrently with other
// subscribers' calls, so the last price map is locked.
type AlertForwarder struct {
	logger    Logger
	writer    KafkaWriter
	threshold float64
	now       func() time.Time

	mu   sync.Mutex
	last map[string]float64
}

func NewAlertForwarder(logger Logger, writer KafkaWriter, threshold float64) *AlertForwarder {
	return &AlertForwarder{
		logger:    logger,
		writer:    writer,
		threshold: threshold,
		now:       time.Now,
		last:      make(map[string]float64),
	}
}

func (a *AlertForwarder) OnEvent(ctx context.Context, symbol string, value float64) error {
	a.mu.Lock()
	prev, seen := a.last[symbol]
	a.last[symbol] = value
	a.mu.Unlock()

	if !seen || prev == 0 || a.threshold <= 0 {
		return nil
	}

	change := (value - prev) / prev
	if math.Abs(change) < a.threshold {
		return nil
	}

	payload, err := json.Marshal(models.PriceAlert{
		Symbol:    symbol,
		Previous:  prev,
		Price:     value,
		Change:    change,
		Timestamp: a.now().UnixMicro(),
	})
	if err != nil {
		return err
	}

	if err := a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(symbol), // Key ensures partition ordering
		Value: payload,
	}); err != nil {
		return fmt.Errorf("kafka write alert %s: %w", symbol, err)
	}

	a.logger.Info("Price alert", zap.String("symbol", symbol), zap.Float64("change", change))
	return nil
}
