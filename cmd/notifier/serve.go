package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/feed"
	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/gateway"
	"github.com/shubham-shewale/stock-notifier/cmd/notifier/internal/sink"
	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
	"github.com/shubham-shewale/stock-notifier/pkg/config"
)

type runner interface {
	Run(ctx context.Context) error
}

func serveCmd() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume the price feed and notify websocket clients, Redis snapshots and Kafka alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, o)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cfg, logger)
		},
	}

	cmd.Flags().StringVar(&o.source, "source", config.SourceKafka, "price feed: kafka, redis or sim")
	o.register(cmd)
	return cmd
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	bc := dispatchConfig(cfg)
	if bc.Ordered && !cfg.Broadcast.Ordered {
		logger.Info("Alerts enabled, switching to ordered delivery")
	}
	b := newBroadcaster(bc, logger)

	snapshots := sink.NewSnapshotWriter(rdb)
	if err := b.AddObserver(snapshots); err != nil {
		return err
	}

	var alertWriter *kafka.Writer
	if alertsEnabled(cfg) {
		alertWriter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.AlertTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
		}
		if err := b.AddObserver(sink.NewAlertForwarder(logger.Named("alert"), alertWriter, cfg.Alert.Threshold)); err != nil {
			return err
		}
	}

	src, closeSrc := newFeed(cfg, logger, rdb, b)
	defer closeSrc()

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.NewHandler(b, snapshots, logger.Named("gateway"), cfg.Feed.Tickers))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			State string          `json:"state"`
			Stats broadcast.Stats `json:"stats"`
			Subs  int             `json:"subscribers"`
		}{b.State().String(), b.Stats(), b.Registry().Len()})
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- src.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-srvErr:
		logger.Error("HTTP Error", zap.Error(runErr))
	case runErr = <-feedDone:
		feedDone <- runErr
		logger.Warn("Feed stopped", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Broadcast.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("Waiting for feed to stop...")
	select {
	case <-feedDone:
	case <-shutdownCtx.Done():
	}

	logger.Info("Draining broadcaster...")
	if err := b.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Broadcaster shutdown", zap.Error(err))
	}

	if alertWriter != nil {
		if err := alertWriter.Close(); err != nil {
			logger.Error("Error closing Kafka writer", zap.Error(err))
		}
	}

	logger.Info("Shutdown Complete")
	return runErr
}

func alertsEnabled(cfg *config.Config) bool {
	return cfg.Alert.Threshold > 0 && len(cfg.Kafka.Brokers) > 0
}

// dispatchConfig returns the broadcaster settings serve runs with.
// AlertForwarder diffs each tick against the previous one, so it needs
// ordered delivery.
func dispatchConfig(cfg *config.Config) config.BroadcastConfig {
	bc := cfg.Broadcast
	if alertsEnabled(cfg) {
		bc.Ordered = true
	}
	return bc
}

func newFeed(cfg *config.Config, logger *zap.Logger, rdb *redis.Client, p feed.Publisher) (runner, func()) {
	switch cfg.Feed.Source {
	case config.SourceRedis:
		return feed.NewRedisFeed(logger.Named("feed"), rdb, p), func() {}

	case config.SourceSim:
		return feed.NewSimulator(logger.Named("feed"), p, cfg.Feed.Tickers, feed.DefaultBasePrices,
			feed.NewRealRand(), feed.RealClock{}, 100*time.Millisecond), func() {}

	default:
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			GroupID:  cfg.Kafka.GroupID,
			MinBytes: 200,
			MaxBytes: 10e6,
			MaxWait:  200 * time.Millisecond,
			// Rebalancing: 3s heartbeat, 10s session timeout for responsive scaling
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    10 * time.Second,
		})
		return feed.NewKafkaFeed(logger.Named("feed"), reader, p), func() {
			if err := reader.Close(); err != nil {
				logger.Error("Error closing reader", zap.Error(err))
			}
		}
	}
}
