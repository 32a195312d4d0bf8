package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
	"github.com/shubham-shewale/stock-notifier/pkg/config"
)

type failingRunner struct {
	err error
}

func (f failingRunner) Run(ctx context.Context) error { return f.err }

func TestRunSimulation_DrainsOnFeedError(t *testing.T) {
	b := broadcast.New(broadcast.WithLogger(zap.NewNop()))
	boom := errors.New("feed exploded")

	err := runSimulation(context.Background(), b, failingRunner{err: boom}, time.Second, zap.NewNop())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, broadcast.StateStopped, b.State())
	assert.ErrorIs(t, b.Publish("AAPL", 1), broadcast.ErrClosed)
}

func TestRunSimulation_DrainsOnSuccess(t *testing.T) {
	b := broadcast.New(broadcast.WithLogger(zap.NewNop()))

	require.NoError(t, runSimulation(context.Background(), b, failingRunner{}, time.Second, zap.NewNop()))
	assert.Equal(t, broadcast.StateStopped, b.State())
}

func TestDispatchConfig_OrderedWhenAlertsEnabled(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		brokers   []string
		ordered   bool
		want      bool
	}{
		{"alerts on", 0.05, []string{"localhost:9092"}, false, true},
		{"no threshold", 0, []string{"localhost:9092"}, false, false},
		{"no brokers", 0.05, nil, false, false},
		{"already ordered", 0, nil, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Alert.Threshold = tt.threshold
			cfg.Kafka.Brokers = tt.brokers
			cfg.Broadcast.Ordered = tt.ordered
			cfg.Broadcast.Workers = 4

			bc := dispatchConfig(cfg)
			assert.Equal(t, tt.want, bc.Ordered)
			assert.Equal(t, 4, bc.Workers)
			assert.Equal(t, tt.ordered, cfg.Broadcast.Ordered, "config must not be mutated")
		})
	}
}
