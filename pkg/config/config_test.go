package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/stock-notifier/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Port)
	assert.Equal(t, 8, cfg.Broadcast.Workers)
	assert.Equal(t, 1024, cfg.Broadcast.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Broadcast.ShutdownTimeout)
	assert.Equal(t, config.SourceKafka, cfg.Feed.Source)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BROADCAST_WORKERS", "3")
	t.Setenv("BROADCAST_ORDERED", "true")
	t.Setenv("BROADCAST_NOTIFY_TIMEOUT", "250ms")
	t.Setenv("FEED_SOURCE", "sim")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Broadcast.Workers)
	assert.True(t, cfg.Broadcast.Ordered)
	assert.Equal(t, 250*time.Millisecond, cfg.Broadcast.NotifyTimeout)
	assert.Equal(t, config.SourceSim, cfg.Feed.Source)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoadConfig_InvalidSource(t *testing.T) {
	t.Setenv("FEED_SOURCE", "carrier-pigeon")

	_, err := config.LoadConfig()
	if err == nil {
		t.Fatal("Expected error for unknown feed source")
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Kafka:     config.KafkaConfig{Brokers: []string{"b:9092"}},
			Broadcast: config.BroadcastConfig{Workers: 1, QueueSize: 1},
			Feed:      config.FeedConfig{Source: config.SourceKafka},
		}
	}

	cases := map[string]func(c *config.Config){
		"zero workers":     func(c *config.Config) { c.Broadcast.Workers = 0 },
		"zero queue":       func(c *config.Config) { c.Broadcast.QueueSize = 0 },
		"negative timeout": func(c *config.Config) { c.Broadcast.NotifyTimeout = -time.Second },
		"no brokers":       func(c *config.Config) { c.Kafka.Brokers = nil },
		"negative alert":   func(c *config.Config) { c.Alert.Threshold = -1 },
	}

	base := valid()
	require.NoError(t, base.Validate())

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := config.NewLogger(config.LoggerConfig{Level: "debug", Encoding: "console"}, "local")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = config.NewLogger(config.LoggerConfig{Level: "loud"}, "prod")
	assert.Error(t, err)
}
