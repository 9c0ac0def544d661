// Package config loads process configuration for the API, the worker and the bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileEnv names the environment variable holding an optional YAML config path.
const FileEnv = "WARDROBE_CONFIG"

type Config struct {
	Env       string `koanf:"env"`
	Addr      string `koanf:"addr"`
	SentryDSN string `koanf:"sentry_dsn"`
	Release   string `koanf:"release"`

	DBUsername string `koanf:"db_username"`
	DBPassword string `koanf:"db_password"`
	DBHost     string `koanf:"db_host"`
	DBPort     string `koanf:"db_port"`
	DBName     string `koanf:"db_name"`

	AsyncBrokerAddress string `koanf:"async_broker_address"`
	WorkerConcurrency  int    `koanf:"worker_concurrency"`
	DailyOutfitCron    string `koanf:"daily_outfit_cron"`

	JWTSecret string `koanf:"jwt_secret"`

	GoogleAPIKey   string `koanf:"google_api_key"`
	GeminiModel    string `koanf:"gemini_model"`
	EmbeddingModel string `koanf:"embedding_model"`

	LLMTimeout          time.Duration `koanf:"llm_timeout"`
	LLMMaxAttempts      int           `koanf:"llm_max_attempts"`
	LLMRetryInitial     time.Duration `koanf:"llm_retry_initial"`
	LLMRetryMax         time.Duration `koanf:"llm_retry_max"`
	LLMRatePerSecond    float64       `koanf:"llm_rate_per_second"`
	LLMBurst            int           `koanf:"llm_burst"`
	BreakerMaxFailures  uint32        `koanf:"breaker_max_failures"`
	BreakerOpenDuration time.Duration `koanf:"breaker_open_duration"`

	OutfitMaxResults int `koanf:"outfit_max_results"`
	FreeClosetLimit  int `koanf:"free_closet_limit"`

	R2AccountID       string `koanf:"r2_account_id"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2AccessKeySecret string `koanf:"r2_access_key_secret"`
	R2BucketName      string `koanf:"r2_bucket_name"`

	TelegramBot      bool   `koanf:"telegram_bot"`
	TelegramBotToken string `koanf:"telegram_bot_token"`
}

func Default() *Config {
	return &Config{
		Env:                 "local",
		Addr:                ":8083",
		Release:             "wardrobeapi@1.0.0",
		DBPort:              "5432",
		AsyncBrokerAddress:  "localhost:6379",
		WorkerConcurrency:   10,
		DailyOutfitCron:     "0 8 * * *",
		GeminiModel:         "gemini-2.5-flash",
		EmbeddingModel:      "text-embedding-004",
		LLMTimeout:          60 * time.Second,
		LLMMaxAttempts:      3,
		LLMRetryInitial:     time.Second,
		LLMRetryMax:         10 * time.Second,
		LLMRatePerSecond:    2,
		LLMBurst:            4,
		BreakerMaxFailures:  5,
		BreakerOpenDuration: 30 * time.Second,
		OutfitMaxResults:    20,
		FreeClosetLimit:     30,
	}
}

// Load layers defaults, the optional YAML file named by WARDROBE_CONFIG and
// the environment (DB_HOST -> db_host), later sources winning.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("llm_timeout must be positive"))
	}
	if c.LLMMaxAttempts < 1 {
		errs = append(errs, errors.New("llm_max_attempts must be at least 1"))
	}
	if c.OutfitMaxResults < 1 {
		errs = append(errs, errors.New("outfit_max_results must be at least 1"))
	}
	if c.LLMRatePerSecond <= 0 {
		errs = append(errs, errors.New("llm_rate_per_second must be positive"))
	}
	return errors.Join(errs...)
}

// DatabaseURL is the postgres DSN built from the db_* settings.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
