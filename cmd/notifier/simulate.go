package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/feed"
	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/sink"
	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
)

func simulateCmd() *cobra.Command {
	var (
		o        overrides
		traders  int
		duration time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish simulated ticks to a set of logging traders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if traders < 1 {
				return fmt.Errorf("need at least one trader, got %d", traders)
			}

			cfg, logger, err := setup(cmd, o)
			if err != nil {
				return err
			}
			defer logger.Sync()

			b := newBroadcaster(cfg.Broadcast, logger)

			ts := make([]*sink.Trader, traders)
			for i := range ts {
				ts[i] = sink.NewTrader(fmt.Sprintf("Trader %d", i+1), logger.Named("trader"))
				if err := b.AddObserver(ts[i]); err != nil {
					_ = b.Shutdown(context.Background())
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, duration)
			defer cancel()

			sim := feed.NewSimulator(logger.Named("feed"), b, cfg.Feed.Tickers, feed.DefaultBasePrices,
				feed.NewRealRand(), feed.RealClock{}, interval)
			if err := runSimulation(ctx, b, sim, cfg.Broadcast.ShutdownTimeout, logger); err != nil {
				return err
			}

			for _, t := range ts {
				logger.Info("Trader summary", zap.String("trader", t.Name()), zap.Int64("received", t.Received()))
			}
			return nil
		},
	}

	o.register(cmd)
	cmd.Flags().IntVar(&traders, "traders", 2, "number of logging traders to register")
	cmd.Flags().DurationVar(&duration, "duration", 2*time.Second, "how long to publish")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "delay between ticks")
	return cmd
}

// runSimulation runs src until ctx is done, then drains b. b is drained on
// every return path.
func runSimulation(ctx context.Context, b *broadcast.Broadcaster, src runner, shutdownTimeout time.Duration, logger *zap.Logger) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Broadcaster shutdown", zap.Error(err))
		}
	}()

	return src.Run(ctx)
}
