package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	xutil "SignalFuse/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"20"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"10"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Logging struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=console json"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
		Ship       bool   `yaml:"ship"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine Engine `yaml:"engine"`
	Kafka  struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers" validate:"required_if=Enabled true"`
		TicksTopic       string   `yaml:"ticks_topic" default:"signalfuse.ticks"`
		OutcomesTopic    string   `yaml:"outcomes_topic" default:"signalfuse.outcomes"`
		PredictionsTopic string   `yaml:"predictions_topic" default:"signalfuse.predictions"`
		LogsTopic        string   `yaml:"logs_topic" default:"signalfuse.logs"`
		RequiredAcks     int      `yaml:"required_acks" default:"1"`
		Compression      string   `yaml:"compression" default:"snappy"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signalfuse"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"signalfuse.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalfuse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"30s"`
		KeyPrefix   string        `yaml:"key_prefix" default:"signalfuse"`
	} `yaml:"redis"`
	Finnhub struct {
		Enabled         bool          `yaml:"enabled"`
		APIKey          string        `yaml:"api_key" validate:"required_if=Enabled true"`
		WebSocketURL    string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		Symbols         []string      `yaml:"symbols"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval    time.Duration `yaml:"ping_interval" default:"30s"`
		Window          int           `yaml:"window" default:"120"`
		MaxTradesPerSec float64       `yaml:"max_trades_per_sec" default:"20"`
		BufferSize      int           `yaml:"buffer_size" default:"1000"`
	} `yaml:"finnhub"`
	Adapters struct {
		Projection bool            `yaml:"projection" default:"true"`
		Remote     []RemoteAdapter `yaml:"remote" validate:"dive"`
	} `yaml:"adapters"`
}

// Engine holds the tuned constants of the fusion core.
type Engine struct {
	MinimumAlignment       int           `yaml:"minimum_alignment" default:"10" validate:"min=1"`
	ImprobabilityThreshold float64       `yaml:"improbability_threshold" default:"0.9" validate:"gt=0,lte=1"`
	MomentumCutoff         float64       `yaml:"momentum_cutoff" default:"0.2" validate:"gt=0,lt=1"`
	PhaseTolerance         float64       `yaml:"phase_tolerance" default:"0.1" validate:"gt=0,lt=0.5"`
	ConfidenceCap          float64       `yaml:"confidence_cap" default:"0.95" validate:"gt=0,lte=1"`
	CalibrationGate        int           `yaml:"calibration_gate" default:"50" validate:"min=1"`
	Retention              time.Duration `yaml:"retention" default:"720h"`
	HistorySize            int           `yaml:"history_size" default:"1000" validate:"min=1"`
	CorrelationWindow      int           `yaml:"correlation_window" default:"100" validate:"min=2"`
	DefaultHorizon         string        `yaml:"default_horizon" default:"1h"`
	MailboxSize            int           `yaml:"mailbox_size" default:"256" validate:"min=1"`
	CommandTimeout         time.Duration `yaml:"command_timeout" default:"5s"`
	PredictEvery           time.Duration `yaml:"predict_every" default:"1m"`
}

// RemoteAdapter describes an out-of-process signature producer.
type RemoteAdapter struct {
	Domain   string        `yaml:"domain" validate:"required"`
	URL      string        `yaml:"url" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" default:"3s"`
	Retries  int           `yaml:"retries" default:"3"`
	RPS      float64       `yaml:"rps" default:"5"`
	Burst    int           `yaml:"burst" default:"5"`
	Disabled bool          `yaml:"disabled"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		for i := range c.Adapters.Remote {
			if err := defaults.Set(&c.Adapters.Remote[i]); err != nil {
				return nil, fmt.Errorf("set adapter defaults: %w", err)
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = xutil.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("PREDICT_EVERY"); v != "" {
		c.Engine.PredictEvery = xutil.ParseDurationDefault(v, c.Engine.PredictEvery)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = xutil.SplitCSV(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = xutil.SplitCSV(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Finnhub.Enabled && len(c.Finnhub.Symbols) == 0 {
		return fmt.Errorf("finnhub.symbols cannot be empty when the feed is enabled")
	}
	return nil
}
