package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	BaseURL  string `yaml:"base_url"` // used to build shareable session URLs
	JoinPath string `yaml:"join_path"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	GeminiKey     string        `yaml:"gemini_key"`
	GeminiBaseURL string        `yaml:"gemini_base_url"`
	Model         string        `yaml:"model"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
}

type QueueConfig struct {
	DispatchInterval time.Duration `yaml:"dispatch_interval"` // global throttle between dispatches
	RetryCooldown    time.Duration `yaml:"retry_cooldown"`    // wait before the single auto-retry
}

type UploadConfig struct {
	Dir              string   `yaml:"dir"`
	MaxSizeMB        int      `yaml:"max_size_mb"`
	AllowedMIMETypes []string `yaml:"allowed_mime_types"`
	RatePerMinute    int      `yaml:"rate_per_minute"` // per-token ingest rate limit
}

type ClientConfig struct {
	BackoffBase  time.Duration `yaml:"backoff_base"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollCap      int           `yaml:"poll_cap"`
}

type AuthConfig struct {
	APIKey     string        `yaml:"api_key"` // interviewer login credential
	HMACSecret string        `yaml:"hmac_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Queue    QueueConfig    `yaml:"queue"`
	Upload   UploadConfig   `yaml:"upload"`
	Client   ClientConfig   `yaml:"client"`
	Auth     AuthConfig     `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.JoinPath == "" {
		cfg.Server.JoinPath = "/interviewee"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.5-flash"
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 5 * time.Minute
	}
	if cfg.Queue.DispatchInterval <= 0 {
		cfg.Queue.DispatchInterval = 15 * time.Second
	}
	if cfg.Queue.RetryCooldown <= 0 {
		cfg.Queue.RetryCooldown = 70 * time.Second
	}
	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = "uploads"
	}
	if cfg.Upload.MaxSizeMB <= 0 {
		cfg.Upload.MaxSizeMB = 100
	}
	if len(cfg.Upload.AllowedMIMETypes) == 0 {
		cfg.Upload.AllowedMIMETypes = []string{"video/webm", "video/ogg"}
	}
	if cfg.Upload.RatePerMinute <= 0 {
		cfg.Upload.RatePerMinute = 30
	}
	if cfg.Client.BackoffBase <= 0 {
		cfg.Client.BackoffBase = 2 * time.Second
	}
	if cfg.Client.MaxAttempts <= 0 {
		cfg.Client.MaxAttempts = 3
	}
	if cfg.Client.PollInterval <= 0 {
		cfg.Client.PollInterval = 3 * time.Second
	}
	if cfg.Client.PollCap <= 0 {
		cfg.Client.PollCap = 12
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 30 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" && !dev {
		return nil, errors.New("database.url is required")
	}
	if cfg.AI.GeminiKey == "" && !dev {
		return nil, errors.New("ai.gemini_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
