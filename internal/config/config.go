package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CacheConfig struct {
	SizeMB int
	TTL    time.Duration
}

type ReportConfig struct {
	Interval             time.Duration
	ObservationRetention time.Duration
}

type R2Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

func (c R2Config) Configured() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type Config struct {
	Environment    string
	LogLevel       string
	Timezone       string
	Location       *time.Location
	HTTP           HTTPConfig
	DB             DBConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Cache          CacheConfig
	Report         ReportConfig
	R2             R2Config
	MetricsEnabled bool
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    strings.ToLower(v.GetString("LOG_LEVEL")),
		Timezone:    v.GetString("APP_TIMEZONE"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			URL:          strings.TrimSpace(v.GetString("REDIS_URL")),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			LockTTL:      v.GetDuration("LOCK_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Cache: CacheConfig{
			SizeMB: v.GetInt("RATE_CACHE_MB"),
			TTL:    v.GetDuration("RATE_CACHE_TTL"),
		},
		Report: ReportConfig{
			Interval:             v.GetDuration("REPORT_INTERVAL"),
			ObservationRetention: v.GetDuration("OBSERVATION_RETENTION"),
		},
		R2: R2Config{
			Endpoint:      strings.TrimSpace(v.GetString("R2_ENDPOINT")),
			AccessKey:     strings.TrimSpace(v.GetString("R2_ACCESS_KEY_ID")),
			SecretKey:     strings.TrimSpace(v.GetString("R2_SECRET_ACCESS_KEY")),
			Bucket:        strings.TrimSpace(v.GetString("R2_BUCKET")),
			Region:        strings.TrimSpace(v.GetString("R2_REGION")),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("R2_PUBLIC_BASE_URL")), "/"),
		},
		MetricsEnabled: true,
	}

	if v.IsSet("METRICS_ENABLED") {
		cfg.MetricsEnabled = v.GetBool("METRICS_ENABLED")
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Amsterdam"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 10 * time.Second
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "parking.sessions"
	}
	if cfg.Cache.SizeMB == 0 {
		cfg.Cache.SizeMB = 1
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Minute
	}
	if !v.IsSet("REPORT_INTERVAL") {
		cfg.Report.Interval = time.Hour
	}
	if cfg.R2.Region == "" {
		cfg.R2.Region = "auto"
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	v := validate.Map(map[string]any{
		"DB_DSN":        cfg.DB.DSN,
		"HTTP_PORT":     cfg.HTTP.Port,
		"LOG_LEVEL":     cfg.LogLevel,
		"APP_ENV":       cfg.Environment,
		"RATE_CACHE_MB": cfg.Cache.SizeMB,
	})
	v.StringRule("DB_DSN", "required")
	v.StringRule("HTTP_PORT", "required|int|min:1|max:65535")
	v.StringRule("LOG_LEVEL", "required|in:trace,debug,info,warn,error,fatal")
	v.StringRule("APP_ENV", "required|in:development,test,staging,production")
	v.StringRule("RATE_CACHE_MB", "int|min:1")

	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	if cfg.Report.Interval < 0 {
		return fmt.Errorf("invalid config: REPORT_INTERVAL must not be negative")
	}
	if cfg.Report.ObservationRetention < 0 {
		return fmt.Errorf("invalid config: OBSERVATION_RETENTION must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
