package sink

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Trader logs every notification it receives.
type Trader struct {
	name     string
	logger   Logger
	received atomic.Int64
}

func NewTrader(name string, logger Logger) *Trader {
	return &Trader{name: name, logger: logger}
}

func (t *Trader) OnEvent(ctx context.Context, symbol string, value float64) error {
	t.received.Add(1)
	t.logger.Info("Trader notified",
		zap.String("trader", t.name),
		zap.String("symbol", symbol),
		zap.Float64("price", value))
	return nil
}

func (t *Trader) Name() string    { return t.name }
func (t *Trader) Received() int64 { return t.received.Load() }
