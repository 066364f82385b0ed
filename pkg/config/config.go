package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		// Digest publishes aggregated error lines to the kafka logs topic.
		Digest         bool          `yaml:"digest"`
		DigestInterval time.Duration `yaml:"digest_interval" default:"30s"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"20"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
		AutoMigrate     bool          `yaml:"auto_migrate" default:"true"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"4"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		JobTimeout time.Duration `yaml:"job_timeout" default:"2m"`
		KeyPrefix  string        `yaml:"key_prefix" default:"signalrelay:queue"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		RequiredAcks     int      `yaml:"required_acks" default:"1"`
		Compression      string   `yaml:"compression" default:"snappy"`
		AutoCreateTopics bool     `yaml:"auto_create_topics"`
		Topics           struct {
			Events     string `yaml:"events" default:"signalrelay.events"`
			RawSignals string `yaml:"raw_signals" default:"signalrelay.raw-signals"`
			Logs       string `yaml:"logs" default:"signalrelay.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled       bool          `yaml:"enabled"`
			GroupID       string        `yaml:"group_id" default:"signalrelay"`
			StartOffset   string        `yaml:"start_offset" default:"earliest"`
			Workers       int           `yaml:"workers" default:"2"`
			BufferSize    int           `yaml:"buffer_size" default:"64"`
			RetryMax      int           `yaml:"retry_max" default:"3"`
			BackoffMin    time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax    time.Duration `yaml:"backoff_max" default:"5s"`
			HandleTimeout time.Duration `yaml:"handle_timeout" default:"30s"`
			DLQTopic      string        `yaml:"dlq_topic" default:"signalrelay.raw-signals.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalrelay"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
		// AffixPromptTTL bounds how long a symbol prefix/suffix prompt waits
		// for the subscriber's reply.
		AffixPromptTTL time.Duration `yaml:"affix_prompt_ttl" default:"5m"`
	} `yaml:"telegram"`
	Payment struct {
		BaseURL        string        `yaml:"base_url" default:"https://sandbox.ipaymu.com"`
		VA             string        `yaml:"va"`
		APIKey         string        `yaml:"api_key"`
		PublicURL      string        `yaml:"public_url"`
		ReturnURL      string        `yaml:"return_url"`
		CallbackSecret string        `yaml:"callback_secret"`
		Timeout        time.Duration `yaml:"timeout" default:"15s"`
		InvoiceTTL     time.Duration `yaml:"invoice_ttl" default:"24h"`
		ReminderAfter  time.Duration `yaml:"reminder_after" default:"1h"`
		LockTTL        time.Duration `yaml:"lock_ttl" default:"30s"`
		// DistributedLock guards confirmations with redsync; off means an
		// in-process lock for single-instance deployments.
		DistributedLock bool `yaml:"distributed_lock" default:"true"`
	} `yaml:"payment"`
	Relay struct {
		JWTSecret    string        `yaml:"jwt_secret"`
		TokenTTL     time.Duration `yaml:"token_ttl" default:"720h"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
		PublicURL    string        `yaml:"public_url"`
	} `yaml:"relay"`
	Dispatch struct {
		Rate        float64       `yaml:"rate" default:"20"`
		Burst       int           `yaml:"burst" default:"1"`
		SendTimeout time.Duration `yaml:"send_timeout" default:"10s"`
		// ManualTrades caps manual trade requests per subscriber per minute.
		ManualTrades int `yaml:"manual_trades_per_minute" default:"6"`
	} `yaml:"dispatch"`
	Ingest struct {
		Token string `yaml:"token"`
	} `yaml:"ingest"`
	Scheduler struct {
		ExpireInvoices string `yaml:"expire_invoices" default:"@every 15m"`
		RemindPending  string `yaml:"remind_pending" default:"@hourly"`
		ExpireSubs     string `yaml:"expire_subscriptions" default:"@daily"`
	} `yaml:"scheduler"`
	Cache struct {
		HistoryTTL time.Duration `yaml:"history_ttl" default:"1m"`
		Redis      bool          `yaml:"redis"`
	} `yaml:"cache"`
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides it with environment
// variables and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("DATABASE_DSN", &c.Database.DSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	str("IPAYMU_VA", &c.Payment.VA)
	str("IPAYMU_API_KEY", &c.Payment.APIKey)
	str("IPAYMU_BASE_URL", &c.Payment.BaseURL)
	str("PUBLIC_URL", &c.Payment.PublicURL)
	str("PAYMENT_CALLBACK_SECRET", &c.Payment.CallbackSecret)
	str("RELAY_JWT_SECRET", &c.Relay.JWTSecret)
	str("INGEST_TOKEN", &c.Ingest.Token)

	if v := getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if c.Telegram.Token != "" {
		c.Telegram.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	if c.Dispatch.Rate <= 0 {
		return fmt.Errorf("dispatch.rate must be positive")
	}
	if c.Payment.InvoiceTTL <= c.Payment.ReminderAfter {
		return fmt.Errorf("payment.invoice_ttl must exceed payment.reminder_after")
	}
	if c.IsProduction() {
		for name, v := range map[string]string{
			"relay.jwt_secret":        c.Relay.JWTSecret,
			"payment.callback_secret": c.Payment.CallbackSecret,
			"ingest.token":            c.Ingest.Token,
		} {
			if v == "" {
				return fmt.Errorf("%s is required in production", name)
			}
		}
	}
	return nil
}

// IsProduction reports whether secrets are mandatory.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
