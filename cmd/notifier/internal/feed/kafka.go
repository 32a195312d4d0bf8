package feed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
	"github.com/shubham-shewale/stock-notifier/pkg/models"
)

// KafkaFeed reads market ticks from Kafka and publishes them.
type KafkaFeed struct {
	logger    Logger
	reader    KafkaReader
	publisher Publisher

	// last processed SeqID per symbol; Run is the only writer
	lastSeq map[string]int64
}

func NewKafkaFeed(logger Logger, reader KafkaReader, publisher Publisher) *KafkaFeed {
	return &KafkaFeed{
		logger:    logger,
		reader:    reader,
		publisher: publisher,
		lastSeq:   make(map[string]int64),
	}
}

// Run consumes until ctx is cancelled or the publisher is closed.
func (f *KafkaFeed) Run(ctx context.Context) error {
	f.logger.Info("Kafka Feed Started")

	for {
		m, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Error("Kafka Read Error", zap.Error(err))
			continue
		}

		update, ok := f.decode(m.Value)
		if !ok {
			continue
		}

		if update.SeqID <= f.lastSeq[update.Symbol] {
			f.logger.Debug("Skipping duplicate update", zap.String("symbol", update.Symbol), zap.Int64("seq_id", update.SeqID))
			continue
		}
		f.lastSeq[update.Symbol] = update.SeqID

		if err := publish(f.publisher, f.logger, update.Symbol, update.Price); err != nil {
			return nil
		}
	}
}

func (f *KafkaFeed) decode(payload []byte) (models.StockUpdate, bool) {
	var update models.StockUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		f.logger.Error("JSON Unmarshal Error", zap.Error(err))
		return update, false
	}
	return update, validUpdate(f.logger, &update)
}

func validUpdate(logger Logger, u *models.StockUpdate) bool {
	u.Symbol = strings.ToUpper(strings.TrimSpace(u.Symbol))
	if u.Symbol == "" || math.IsNaN(u.Price) || math.IsInf(u.Price, 0) {
		logger.Warn("Discarding malformed update", zap.String("symbol", u.Symbol), zap.Float64("price", u.Price))
		return false
	}
	return true
}

// publish forwards one tick. It only returns an error once the publisher is
// closed; overload is logged and the tick is skipped.
func publish(p Publisher, logger Logger, symbol string, price float64) error {
	err := p.Publish(symbol, price)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, broadcast.ErrClosed):
		logger.Info("Broadcaster closed, stopping feed")
		return err
	case errors.Is(err, broadcast.ErrOverloaded):
		logger.Warn("Dropping slow packet", zap.String("symbol", symbol), zap.Error(err))
		return nil
	default:
		logger.Error("Publish Error", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
}
