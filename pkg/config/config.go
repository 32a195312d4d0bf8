package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SourceKafka = "kafka"
	SourceRedis = "redis"
	SourceSim   = "sim"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Alert     AlertConfig     `mapstructure:"alert"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // json, console
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	AlertTopic string   `mapstructure:"alert_topic"`
}

type BroadcastConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	Ordered         bool          `mapstructure:"ordered"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type FeedConfig struct {
	Source  string   `mapstructure:"source"` // kafka, redis, sim
	Tickers []string `mapstructure:"tickers"`
}

type AlertConfig struct {
	Threshold float64 `mapstructure:"threshold"` // relative move that triggers an alert, 0 disables
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults
	setDefaults(v)

	// 3. Configure Viper to read Environment Variables ("broadcast.workers" -> "BROADCAST_WORKERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys so Unmarshal sees them
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.alert_topic")
	bindEnv(v, "broadcast.workers", "broadcast.queue_size", "broadcast.ordered",
		"broadcast.notify_timeout", "broadcast.shutdown_timeout")
	bindEnv(v, "feed.source", "feed.tickers")
	bindEnv(v, "alert.threshold")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// 6. Validation
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "stock-notifier-group")
	v.SetDefault("kafka.alert_topic", "price_alerts")

	v.SetDefault("broadcast.workers", 8)
	v.SetDefault("broadcast.queue_size", 1024)
	v.SetDefault("broadcast.ordered", false)
	v.SetDefault("broadcast.notify_timeout", time.Duration(0))
	v.SetDefault("broadcast.shutdown_timeout", 10*time.Second)

	v.SetDefault("feed.source", SourceKafka)
	v.SetDefault("feed.tickers", []string{"AAPL", "GOOG", "TSLA", "AMZN"})

	v.SetDefault("alert.threshold", 0.02)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Broadcast.Workers <= 0 {
		return fmt.Errorf("broadcast workers must be positive, got %d", c.Broadcast.Workers)
	}
	if c.Broadcast.QueueSize <= 0 {
		return fmt.Errorf("broadcast queue size must be positive, got %d", c.Broadcast.QueueSize)
	}
	if c.Broadcast.NotifyTimeout < 0 {
		return fmt.Errorf("broadcast notify timeout cannot be negative")
	}

	switch c.Feed.Source {
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers cannot be empty")
		}
	case SourceRedis, SourceSim:
	default:
		return fmt.Errorf("unknown feed source %q", c.Feed.Source)
	}

	if c.Alert.Threshold < 0 {
		return fmt.Errorf("alert threshold cannot be negative")
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
