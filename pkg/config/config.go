package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		PostRateLimit   int           `yaml:"post_rate_limit"`
		SlowRequest     time.Duration `yaml:"slow_request"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		// Aggregated error logs are published to this Kafka topic when set.
		CollectTopic    string        `yaml:"collect_topic"`
		CollectInterval time.Duration `yaml:"collect_interval"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		MaxPerSecond int           `yaml:"max_per_second"`
		BufferSize   int           `yaml:"buffer_size"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
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
	MySQL struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		AutoMigrate     bool          `yaml:"auto_migrate"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Name         string        `yaml:"name"`
		KeyPrefix    string        `yaml:"key_prefix"`
		Workers      int           `yaml:"workers"`
		MaxRetries   int           `yaml:"max_retries"`
		RetryDelay   time.Duration `yaml:"retry_delay"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"queue"`
	InfluxDB struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Org     string `yaml:"org"`
		Bucket  string `yaml:"bucket"`
	} `yaml:"influxdb"`
	Forecasting struct {
		PriceHorizons   []time.Duration `yaml:"price_horizons"`
		WeatherHorizons []time.Duration `yaml:"weather_horizons"`
		PowerHorizons   []time.Duration `yaml:"power_horizons"`
	} `yaml:"forecasting"`
	Monitor struct {
		DefaultFrequency int            `yaml:"default_frequency"`
		Frequencies      map[string]int `yaml:"frequencies"`
	} `yaml:"monitor"`
	Analytics struct {
		Resolution      time.Duration `yaml:"resolution"`
		ForecastHorizon time.Duration `yaml:"forecast_horizon"`
		CacheTTL        time.Duration `yaml:"cache_ttl"`
		LocalCacheSize  int           `yaml:"local_cache_size"`
	} `yaml:"analytics"`
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
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	// A missing .env is fine; deployments set the variables directly.
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BVP_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.InfluxDB.Token = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// MonitorFrequency returns the expected run frequency (minutes) of a monitored task.
// MONITOR_FREQUENCY_<NAME> takes precedence over the config file.
func (c *Config) MonitorFrequency(task string) int {
	key := "MONITOR_FREQUENCY_" + strings.ToUpper(task)
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if n, ok := c.Monitor.Frequencies[task]; ok {
		return n
	}
	return c.Monitor.DefaultFrequency
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "forecasting"
	}
	if c.Queue.KeyPrefix == "" {
		c.Queue.KeyPrefix = "bvp:queue"
	}
	if c.Monitor.DefaultFrequency == 0 {
		c.Monitor.DefaultFrequency = 10
	}
	if c.Analytics.Resolution == 0 {
		c.Analytics.Resolution = 15 * time.Minute
	}
	if c.Analytics.ForecastHorizon == 0 {
		c.Analytics.ForecastHorizon = 6 * time.Hour
	}
	if c.Analytics.CacheTTL == 0 {
		c.Analytics.CacheTTL = time.Minute
	}
	if len(c.Forecasting.PriceHorizons) == 0 {
		c.Forecasting.PriceHorizons = []time.Duration{24 * time.Hour, 48 * time.Hour}
	}
	if len(c.Forecasting.WeatherHorizons) == 0 {
		c.Forecasting.WeatherHorizons = []time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour, 48 * time.Hour}
	}
	if len(c.Forecasting.PowerHorizons) == 0 {
		c.Forecasting.PowerHorizons = []time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour, 48 * time.Hour}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka backend requires kafka.brokers and kafka.topic")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required")
	}
	if c.Analytics.Resolution%(15*time.Minute) != 0 {
		return fmt.Errorf("analytics.resolution must be a multiple of 15m, got %s", c.Analytics.Resolution)
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	return nil
}
