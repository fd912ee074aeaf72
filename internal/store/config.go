package store

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Guardrails struct {
		MaxAPICallsPerMinute         int      `yaml:"max_api_calls_per_minute" validate:"gte=1"`
		MaxCalculationTimeoutSeconds int      `yaml:"max_calculation_timeout_seconds" validate:"gte=1,lte=3600"`
		AllowedTickerPattern         string   `yaml:"allowed_ticker_pattern" validate:"required"`
		BlockedTickers               []string `yaml:"blocked_tickers" validate:"dive,required"`
		MaxPriceHistoryDays          int      `yaml:"max_price_history_days" validate:"gte=1"`
		MaxOutputBytes               int      `yaml:"max_output_bytes" validate:"gte=1024"`
		EnableRateLimiting           *bool    `yaml:"enable_rate_limiting"`
		RateLimitResetSeconds        int      `yaml:"rate_limit_reset_seconds" validate:"gte=0"`
	} `yaml:"guardrails"`
	Pipeline struct {
		DefaultPeriodDays int `yaml:"default_period_days" validate:"gte=1"`
	} `yaml:"pipeline"`
	Ingest struct {
		Source            string   `yaml:"source" validate:"oneof=FILE STATIC"`
		DataDir           string   `yaml:"data_dir" validate:"required"`
		CacheDir          string   `yaml:"cache_dir"`
		CacheTTLMinutes   int      `yaml:"cache_ttl_minutes" validate:"gte=0"`
		RequestsPerSecond float64  `yaml:"requests_per_second" validate:"gt=0"`
		Burst             int      `yaml:"burst" validate:"gte=1"`
		NewsFeeds         []string `yaml:"news_feeds" validate:"dive,url"`
		MaxArticles       int      `yaml:"max_articles" validate:"gte=0"`
	} `yaml:"ingest"`
	Monitor struct {
		LogDir        string `yaml:"log_dir" validate:"required"`
		RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
	} `yaml:"monitor"`
	Report struct {
		OutputDir string `yaml:"output_dir"`
		Format    string `yaml:"format" validate:"oneof=json text markdown html"`
	} `yaml:"report"`
	Narrative struct {
		Provider string `yaml:"provider" validate:"oneof=NONE RULES"`
	} `yaml:"narrative"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	g := &c.Guardrails
	if g.MaxAPICallsPerMinute == 0 {
		g.MaxAPICallsPerMinute = 100
	}
	if g.MaxCalculationTimeoutSeconds == 0 {
		g.MaxCalculationTimeoutSeconds = 60
	}
	if g.AllowedTickerPattern == "" {
		g.AllowedTickerPattern = `^[A-Z]{1,5}$`
	}
	if g.MaxPriceHistoryDays == 0 {
		g.MaxPriceHistoryDays = 365
	}
	if g.MaxOutputBytes == 0 {
		g.MaxOutputBytes = 10 * 1024 * 1024
	}
	if g.EnableRateLimiting == nil {
		on := true
		g.EnableRateLimiting = &on
	}

	if c.Pipeline.DefaultPeriodDays == 0 {
		c.Pipeline.DefaultPeriodDays = 252
	}

	in := &c.Ingest
	if in.Source == "" {
		in.Source = "FILE"
	}
	if in.DataDir == "" {
		in.DataDir = "data"
	}
	if in.CacheTTLMinutes == 0 {
		in.CacheTTLMinutes = 60
	}
	if in.RequestsPerSecond == 0 {
		in.RequestsPerSecond = 5
	}
	if in.Burst == 0 {
		in.Burst = 1
	}
	if in.MaxArticles == 0 {
		in.MaxArticles = 15
	}

	if c.Monitor.LogDir == "" {
		c.Monitor.LogDir = "logs"
	}
	if c.Monitor.RetentionDays == 0 {
		c.Monitor.RetentionDays = 30
	}

	if c.Report.Format == "" {
		c.Report.Format = "markdown"
	}
	if c.Narrative.Provider == "" {
		c.Narrative.Provider = "RULES"
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := regexp.Compile(c.Guardrails.AllowedTickerPattern); err != nil {
		return fmt.Errorf("guardrails.allowed_ticker_pattern does not compile: %w", err)
	}
	return nil
}

// RateLimitingEnabled reports the effective enable_rate_limiting flag.
func (c *Config) RateLimitingEnabled() bool {
	return c.Guardrails.EnableRateLimiting == nil || *c.Guardrails.EnableRateLimiting
}

func (c *Config) CalculationTimeout() time.Duration {
	return time.Duration(c.Guardrails.MaxCalculationTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Ingest.CacheTTLMinutes) * time.Minute
}

// ParseConfig decodes YAML, applies defaults and validates.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}
