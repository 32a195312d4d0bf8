package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
	"github.com/shubham-shewale/stock-notifier/pkg/config"
)

func main() {
	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Fan out stock price ticks to subscribers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(simulateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// overrides carries command-line flags that take precedence over config.
type overrides struct {
	source  string
	workers int
	ordered bool
}

func (o overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("source") {
		cfg.Feed.Source = o.source
	}
	if cmd.Flags().Changed("workers") {
		cfg.Broadcast.Workers = o.workers
	}
	if cmd.Flags().Changed("ordered") {
		cfg.Broadcast.Ordered = o.ordered
	}
	return cfg.Validate()
}

func (o *overrides) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.workers, "workers", 0, "dispatch workers (overrides BROADCAST_WORKERS)")
	cmd.Flags().BoolVar(&o.ordered, "ordered", false, "keep each subscriber's events in publish order")
}

func setup(cmd *cobra.Command, o overrides) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := o.apply(cmd, cfg); err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func newBroadcaster(cfg config.BroadcastConfig, logger *zap.Logger) *broadcast.Broadcaster {
	return broadcast.New(
		broadcast.WithWorkers(cfg.Workers),
		broadcast.WithQueueSize(cfg.QueueSize),
		broadcast.WithOrderedDelivery(cfg.Ordered),
		broadcast.WithNotifyTimeout(cfg.NotifyTimeout),
		broadcast.WithShutdownTimeout(cfg.ShutdownTimeout),
		broadcast.WithLogger(logger.Named("broadcast")),
	)
}
