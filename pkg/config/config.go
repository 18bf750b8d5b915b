package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Service     struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"service"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Feed struct {
		Source string `yaml:"source"`
		Kafka  struct {
			Brokers  []string `yaml:"brokers"`
			Topic    string   `yaml:"topic"`
			Consumer struct {
				GroupID    string        `yaml:"group_id"`
				Workers    int           `yaml:"workers"`
				BufferSize int           `yaml:"buffer_size"`
				RetryMax   int           `yaml:"retry_max"`
				BackoffMin time.Duration `yaml:"backoff_min"`
				BackoffMax time.Duration `yaml:"backoff_max"`
				DLQTopic   string        `yaml:"dlq_topic"`
				MinBytes   int           `yaml:"min_bytes"`
				MaxBytes   int           `yaml:"max_bytes"`
			} `yaml:"consumer"`
		} `yaml:"kafka"`
		WebSocket struct {
			URL            string        `yaml:"url"`
			APIKey         string        `yaml:"api_key"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay"`
			PingInterval   time.Duration `yaml:"ping_interval"`
		} `yaml:"websocket"`
	} `yaml:"feed"`
	Storage struct {
		Backend     string         `yaml:"backend"`
		AssetPairs  []string       `yaml:"asset_pairs"`
		TicksPerRow map[string]int `yaml:"ticks_per_row"`
		Redis       struct {
			Addr      string `yaml:"addr"`
			Password  string `yaml:"password"`
			DB        int    `yaml:"db"`
			KeyPrefix string `yaml:"key_prefix"`
		} `yaml:"redis"`
		ClickHouse struct {
			Host             string        `yaml:"host"`
			Port             int           `yaml:"port"`
			Database         string        `yaml:"database"`
			User             string        `yaml:"user"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout"`
			ReadTimeout      time.Duration `yaml:"read_timeout"`
			WriteTimeout     time.Duration `yaml:"write_timeout"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		} `yaml:"clickhouse"`
	} `yaml:"storage"`
	Cache struct {
		HistoryTicksSize int `yaml:"history_ticks_size"`
	} `yaml:"cache"`
	Candles struct {
		AggregateVolume bool `yaml:"aggregate_volume"`
	} `yaml:"candles"`
	Persistence struct {
		FlushInterval   time.Duration `yaml:"flush_interval"`
		RetryInitial    time.Duration `yaml:"retry_initial"`
		RetryMax        time.Duration `yaml:"retry_max"`
		BatchQueueDepth int           `yaml:"batch_queue_depth"`
	} `yaml:"persistence"`
	QueueMonitor struct {
		CheckInterval     time.Duration `yaml:"check_interval"`
		DispatchThreshold int           `yaml:"dispatch_threshold"`
		BatchThreshold    int           `yaml:"batch_threshold"`
	} `yaml:"queue_monitor"`
	AssetPairsService struct {
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Retries  int           `yaml:"retries"`
		RetryGap time.Duration `yaml:"retry_gap"`
	} `yaml:"asset_pairs_service"`
	Snapshots struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"snapshots"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("ASSET_PAIRS"); v != "" {
		c.Storage.AssetPairs = strings.Split(v, ",")
	}
	if v := os.Getenv("FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Feed.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Feed.Kafka.Topic = v
	}
	if v := os.Getenv("FEED_WS_URL"); v != "" {
		c.Feed.WebSocket.URL = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.WebSocket.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("ASSET_PAIRS_SERVICE_URL"); v != "" {
		c.AssetPairsService.BaseURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Backend {
	case "redis", "clickhouse", "memory":
	case "":
		return fmt.Errorf("storage.backend is required")
	default:
		return fmt.Errorf("storage.backend must be 'redis', 'clickhouse' or 'memory', got '%s'", c.Storage.Backend)
	}
	switch c.Feed.Source {
	case "kafka":
		if len(c.Feed.Kafka.Brokers) == 0 {
			return fmt.Errorf("feed.kafka.brokers cannot be empty")
		}
		if c.Feed.Kafka.Topic == "" {
			return fmt.Errorf("feed.kafka.topic is required")
		}
	case "websocket":
		if c.Feed.WebSocket.URL == "" {
			return fmt.Errorf("feed.websocket.url is required")
		}
	case "none":
	case "":
		return fmt.Errorf("feed.source is required")
	default:
		return fmt.Errorf("feed.source must be 'kafka', 'websocket' or 'none', got '%s'", c.Feed.Source)
	}
	if len(c.Storage.AssetPairs) == 0 {
		return fmt.Errorf("storage.asset_pairs cannot be empty")
	}
	for interval, ticks := range c.Storage.TicksPerRow {
		if ticks <= 0 {
			return fmt.Errorf("storage.ticks_per_row.%s must be positive, got %d", interval, ticks)
		}
	}
	return nil
}
