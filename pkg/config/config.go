package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RatePerSecond   float64       `yaml:"rate_per_second" default:"20"`
		RateBurst       int           `yaml:"rate_burst" default:"40"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
		Collector  struct {
			Enabled       bool          `yaml:"enabled"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"1m"`
			MaxLogs       int           `yaml:"max_logs" default:"50"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Fusion    FusionConfig    `yaml:"fusion"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Cache     struct {
		Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		TTL           time.Duration `yaml:"ttl" default:"1h"`
		L1TTL         time.Duration `yaml:"l1_ttl" default:"1m"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"5m"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
	Fanout    struct {
		ProviderTimeout time.Duration `yaml:"provider_timeout" default:"3s"`
		Deadline        time.Duration `yaml:"deadline" default:"5s"`
		UseHistory      bool          `yaml:"use_history" default:"true"`
	} `yaml:"fanout"`
	Refresh struct {
		Enabled  bool          `yaml:"enabled"`
		Schedule string        `yaml:"schedule" default:"@every 30m"`
		Products []string      `yaml:"products"`
		Popular  int           `yaml:"popular" default:"20" validate:"gte=0,lte=1000"`
		MinDelay time.Duration `yaml:"min_delay" default:"2s"`
		UseQueue bool          `yaml:"use_queue"`
		Queue    string        `yaml:"queue" default:"pricefusion:refresh"`
		Workers  int           `yaml:"workers" default:"2" validate:"gte=1,lte=64"`
	} `yaml:"refresh"`
	Normalizer struct {
		URL     string            `yaml:"url"`
		Timeout time.Duration     `yaml:"timeout" default:"2s"`
		Aliases map[string]string `yaml:"aliases"`
	} `yaml:"normalizer"`
	Storage struct {
		Backend string `yaml:"backend" default:"sqlite" validate:"oneof=clickhouse postgres sqlite none"`
	} `yaml:"storage"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"pricefusion"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" default:"pricefusion.db"`
	} `yaml:"sqlite"`
	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers"`
		QuotesTopic string   `yaml:"quotes_topic" default:"quotes.raw"`
		FusedTopic  string   `yaml:"fused_topic" default:"prices.fused"`
		LogsTopic   string   `yaml:"logs_topic" default:"pricefusion.logs"`
		Producer    struct {
			Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
			RequiredAcks int           `yaml:"required_acks" default:"1" validate:"oneof=-1 0 1"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"pricefusion"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"quotes.dlq"`
		} `yaml:"consumer"`
		Ingest struct {
			MinInterval time.Duration `yaml:"min_interval" default:"1s"`
			BufferSize  int           `yaml:"buffer_size" default:"1000"`
			RetryEvery  time.Duration `yaml:"retry_every" default:"5s"`
		} `yaml:"ingest"`
	} `yaml:"kafka"`
}

type FusionConfig struct {
	MinSourceCount    int                `yaml:"min_source_count" default:"2" validate:"gte=1"`
	MaxPriceAge       time.Duration      `yaml:"max_price_age" default:"720h"`
	EnableValidation  bool               `yaml:"enable_validation" default:"true"`
	EnableBrandPrices bool               `yaml:"enable_brand_prices" default:"true"`
	UseDynamicTrust   bool               `yaml:"use_dynamic_trust"`
	MADThreshold      float64            `yaml:"mad_threshold" default:"3" validate:"gte=1"`
	DefaultTrust      float64            `yaml:"default_trust" default:"0.5" validate:"gt=0,lte=1"`
	Currencies        []string           `yaml:"currencies"`
	TrustPriors       map[string]float64 `yaml:"trust_priors"`
	AccuracyAlpha     float64            `yaml:"accuracy_alpha" default:"0.2" validate:"gt=0,lte=1"`
}

type AnalyticsConfig struct {
	LowCV          float64            `yaml:"low_cv" default:"0.10"`
	HighCV         float64            `yaml:"high_cv" default:"0.25"`
	TrendNoise     float64            `yaml:"trend_noise" default:"0.02"`
	ForecastWindow int                `yaml:"forecast_window" default:"30" validate:"gte=3"`
	HistoryDays    int                `yaml:"history_days" default:"90" validate:"gte=7"`
	RiskWeights    map[string]float64 `yaml:"risk_weights"`
}

type ProviderConfig struct {
	Name     string        `yaml:"name" validate:"required"`
	URL      string        `yaml:"url" validate:"required,url"`
	Trust    float64       `yaml:"trust" validate:"gte=0,lte=1"`
	Timeout  time.Duration `yaml:"timeout" default:"3s"`
	Attempts int           `yaml:"attempts" default:"2" validate:"gte=1,lte=5"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	// defaults first so explicit false/zero values in YAML survive
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range c.Providers {
		if err := defaults.Set(&c.Providers[i]); err != nil {
			return nil, fmt.Errorf("apply provider defaults: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Backend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for storage.backend=postgres")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Analytics.HighCV <= c.Analytics.LowCV {
		return fmt.Errorf("analytics.high_cv must exceed analytics.low_cv")
	}
	if c.Fanout.ProviderTimeout > c.Fanout.Deadline {
		return fmt.Errorf("fanout.provider_timeout (%s) exceeds fanout.deadline (%s)", c.Fanout.ProviderTimeout, c.Fanout.Deadline)
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
