package feed

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/pkg/models"
)

const channelPattern = "prices.*"

// RedisFeed listens to the prices.<SYMBOL> channels written by the price
// processor and publishes each tick.
type RedisFeed struct {
	logger    Logger
	client    RedisSubscriber
	publisher Publisher

	ready chan struct{}
}

func NewRedisFeed(logger Logger, client RedisSubscriber, publisher Publisher) *RedisFeed {
	return &RedisFeed{
		logger:    logger,
		client:    client,
		publisher: publisher,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the pattern subscription is confirmed.
func (f *RedisFeed) Ready() <-chan struct{} { return f.ready }

// Run blocks until ctx is cancelled, the subscription ends or the publisher is closed.
func (f *RedisFeed) Run(ctx context.Context) error {
	ps := f.client.PSubscribe(ctx, channelPattern)
	defer ps.Close()

	// Wait for the subscription confirmation so nothing published after Ready is missed
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	close(f.ready)
	f.logger.Info("Redis Feed Started", zap.String("pattern", channelPattern))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var update models.StockUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				f.logger.Error("JSON Unmarshal Error", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}

			// The channel name is authoritative for the symbol
			if parts := strings.SplitN(msg.Channel, ".", 2); len(parts) == 2 && parts[1] != "" {
				update.Symbol = parts[1]
			}
			if !validUpdate(f.logger, &update) {
				continue
			}

			if err := publish(f.publisher, f.logger, update.Symbol, update.Price); err != nil {
				return nil
			}
		}
	}
}
