package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether sessions should live in Redis instead of process memory.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&r.DB, validation.Min(0), validation.Max(15)),
	)
}

type Config struct {
	BotToken    string `yaml:"bot_token"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Redis             RedisConfig `yaml:"redis"`
	PostgresDSN       string      `yaml:"postgres_dsn"`
	HistorySQLitePath string      `yaml:"history_sqlite_path"`

	ScratchDir      string        `yaml:"scratch_dir"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	VideoTimeout    time.Duration `yaml:"video_timeout"`
	DocumentTimeout time.Duration `yaml:"document_timeout"`
	SessionTTL      time.Duration `yaml:"session_ttl"`

	DocxRenderer string `yaml:"docx_renderer"`
	FontPath     string `yaml:"font_path"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	SofficePath  string `yaml:"soffice_path"`
}

func Default() *Config {
	return &Config{
		Environment:       EnvDev,
		LogLevel:          "info",
		Redis:             RedisConfig{Port: 6379, Prefix: "convert-bot"},
		HistorySQLitePath: filepath.Join("data", "history.db"),
		ScratchDir:        filepath.Join(os.TempDir(), "convert-bot"),
		Workers:           3,
		QueueSize:         20,
		JobTimeout:        10 * time.Minute,
		VideoTimeout:      5 * time.Minute,
		DocumentTimeout:   2 * time.Minute,
		SessionTTL:        24 * time.Hour,
		DocxRenderer:      "libreoffice",
		FFmpegPath:        "ffmpeg",
		SofficePath:       "soffice",
	}
}

// Load builds the configuration from defaults, the optional YAML file at path and the
// environment, in that order, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.BotToken, "BOT_TOKEN")
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Redis.Prefix, "REDIS_PREFIX")
	setString(&c.PostgresDSN, "POSTGRES_DSN")
	setString(&c.HistorySQLitePath, "HISTORY_SQLITE_PATH")
	setString(&c.ScratchDir, "SCRATCH_DIR")
	setString(&c.DocxRenderer, "DOCX_RENDERER")
	setString(&c.FontPath, "FONT_PATH")
	setString(&c.FFmpegPath, "FFMPEG_PATH")
	setString(&c.SofficePath, "SOFFICE_PATH")

	return errors.Join(
		setInt(&c.Redis.Port, "REDIS_PORT"),
		setInt(&c.Redis.DB, "REDIS_DB"),
		setInt(&c.Workers, "WORKERS"),
		setInt(&c.QueueSize, "QUEUE_SIZE"),
		setDuration(&c.JobTimeout, "JOB_TIMEOUT"),
		setDuration(&c.VideoTimeout, "VIDEO_TIMEOUT"),
		setDuration(&c.DocumentTimeout, "DOCUMENT_TIMEOUT"),
		setDuration(&c.SessionTTL, "SESSION_TTL"),
	)
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BotToken, validation.Required),
		validation.Field(&c.Environment, validation.Required, validation.In(EnvDev, EnvTest, EnvProd)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Redis),
		validation.Field(&c.ScratchDir, validation.Required),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.JobTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.VideoTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.DocumentTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.DocxRenderer, validation.Required, validation.In("libreoffice", "basic")),
		validation.Field(&c.FFmpegPath, validation.Required),
		validation.Field(&c.SofficePath, validation.Required),
	)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
