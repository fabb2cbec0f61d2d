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
	"gopkg.in/yaml.v3"
)

var ErrInvalidRule = errors.New("invalid spread rule")

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"2"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"0"`
	} `yaml:"logging"`
	Engine struct {
		HistorySize    int           `yaml:"history_size" default:"256" validate:"gte=1"`
		HealthSchedule string        `yaml:"health_schedule" default:"@every 30s"`
		HealthMaxAge   time.Duration `yaml:"health_max_age" default:"30s"`
	} `yaml:"engine"`
	Dispatch struct {
		BufferSize     int           `yaml:"buffer_size" default:"1024" validate:"gte=1"`
		Workers        int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryMax       int           `yaml:"retry_max" default:"3" validate:"gte=0"`
		BackoffMin     time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax     time.Duration `yaml:"backoff_max" default:"5s"`
		DeliverTimeout time.Duration `yaml:"deliver_timeout" default:"10s"`
		LogAlerts      bool          `yaml:"log_alerts" default:"true"`
	} `yaml:"dispatch"`
	// FeesBps holds per-venue taker fees in basis points, used by hedged
	// rules that do not set their own fee percentages.
	FeesBps map[string]float64             `yaml:"fees_bps"`
	Symbols map[string]map[string][]string `yaml:"symbols"`
	Rules   []RuleConfig                   `yaml:"rules"`
	Kafka   struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Ingest struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic" default:"venue-updates"`
			GroupID    string        `yaml:"group_id" default:"allpremarkets-engine"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"ingest"`
		Alerts struct {
			Enabled bool   `yaml:"enabled"`
			Topic   string `yaml:"topic" default:"spread-alerts"`
		} `yaml:"alerts"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"spread_alerts"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		Prefix    string `yaml:"prefix" default:"allpremarkets"`
		RecentMax int    `yaml:"recent_max" default:"100"`
		Channel   string `yaml:"channel" default:"alerts"`
	} `yaml:"redis"`
	Telegram struct {
		Enabled       bool          `yaml:"enabled"`
		BotToken      string        `yaml:"bot_token"`
		ChatID        string        `yaml:"chat_id"`
		APIURL        string        `yaml:"api_url" default:"https://api.telegram.org"`
		AlertPrefix   string        `yaml:"alert_prefix" default:"[premarket]"`
		DryRun        bool          `yaml:"dry_run"`
		PollTimeout   time.Duration `yaml:"poll_timeout" default:"30s"`
		RatePerMinute int           `yaml:"rate_per_minute" default:"20" validate:"gte=1"`

		// VenueLinks overrides the venue URLs appended to alert messages.
		VenueLinks map[string]string `yaml:"venue_links"`
	} `yaml:"telegram"`
}

var validate = validator.New()

// Load reads a YAML file, expands ${VAR} references, applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes and validates configuration bytes.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
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
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks struct constraints, rules and the surfaces that need credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	if _, err := c.SymbolTable(); err != nil {
		return err
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("rules cannot be empty")
	}
	if _, err := c.SpreadRules(); err != nil {
		return err
	}
	if (c.Kafka.Ingest.Enabled || c.Kafka.Alerts.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Telegram.Enabled && !c.Telegram.DryRun && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required unless dry_run is set")
	}
	return nil
}
