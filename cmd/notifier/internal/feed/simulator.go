package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Simulator produces random ticks around a base price per symbol.
type Simulator struct {
	logger     Logger
	publisher  Publisher
	tickers    []string
	basePrices map[string]float64
	rand       Rand
	clock      Clock
	interval   time.Duration
}

func NewSimulator(
	logger Logger,
	publisher Publisher,
	tickers []string,
	basePrices map[string]float64,
	rnd Rand,
	clock Clock,
	interval time.Duration,
) *Simulator {
	return &Simulator{
		logger:     logger,
		publisher:  publisher,
		tickers:    tickers,
		basePrices: basePrices,
		rand:       rnd,
		clock:      clock,
		interval:   interval,
	}
}

// Run publishes until ctx is cancelled or the publisher is closed.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("Simulator Started", zap.Strings("tickers", s.tickers))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if len(s.tickers) == 0 {
				s.clock.Sleep(1 * time.Second)
				continue
			}

			symbol := s.tickers[s.rand.Intn(len(s.tickers))]
			fluctuation := (s.rand.Float64() * 10) - 5
			price := s.basePrices[symbol] + fluctuation

			if err := publish(s.publisher, s.logger, symbol, price); err != nil {
				return nil
			}
			s.logger.Debug("Sent update", zap.String("symbol", symbol), zap.Float64("price", price))

			s.clock.Sleep(s.interval)
		}
	}
}

// DefaultBasePrices seeds the simulator for the well-known tickers.
var DefaultBasePrices = map[string]float64{
	"AAPL": 150.0, "GOOG": 2800.0, "GOOGL": 2800.0, "TSLA": 700.0, "AMZN": 3400.0, "MSFT": 300.0,
}
