package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Finnhub    FinnhubConfig    `yaml:"finnhub" mapstructure:"finnhub"`
	Edgar      EdgarConfig      `yaml:"edgar" mapstructure:"edgar"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Workflow   WorkflowConfig   `yaml:"workflow" mapstructure:"workflow"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// FinnhubConfig holds Finnhub API settings.
type FinnhubConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EdgarConfig holds SEC EDGAR settings. SEC rejects requests without a
// descriptive User-Agent, so an empty UserAgent means unconfigured.
type EdgarConfig struct {
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL      string   `yaml:"base_url" mapstructure:"base_url"`
	DataURL      string   `yaml:"data_url" mapstructure:"data_url"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FilingsDays  int      `yaml:"filings_days" mapstructure:"filings_days"`
	FilingsLimit int      `yaml:"filings_limit" mapstructure:"filings_limit"`
	Forms        []string `yaml:"forms" mapstructure:"forms"`
}

// NewsConfig selects and tunes the news provider.
type NewsConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	FeedURL      string `yaml:"feed_url" mapstructure:"feed_url"`
	LookbackDays int    `yaml:"lookback_days" mapstructure:"lookback_days"`
	LexiconPath  string `yaml:"lexicon_path" mapstructure:"lexicon_path"`
}

// AnthropicConfig holds Anthropic API settings for the optional narrative.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CacheConfig configures the provider response cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
	TTLMins int    `yaml:"ttl_mins" mapstructure:"ttl_mins"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMins) * time.Minute
}

// StoreConfig configures the workflow persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// WorkflowConfig configures step scheduling.
type WorkflowConfig struct {
	Parallel        bool `yaml:"parallel" mapstructure:"parallel"`
	StepTimeoutSecs int  `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
}

// StepTimeout returns the per-step deadline.
func (c WorkflowConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSecs) * time.Second
}

// ResilienceConfig tunes provider retries and circuit breakers.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the MCP server transport.
type ServerConfig struct {
	Transport string `yaml:"transport" mapstructure:"transport"`
	Addr      string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Format      string `yaml:"format" mapstructure:"format"`
	WorkflowLog bool   `yaml:"workflow_log" mapstructure:"workflow_log"`
	DataLog     bool   `yaml:"data_log" mapstructure:"data_log"`
}

// envAliases maps config keys to the conventional environment variables
// used by existing MCP deployments. The RESEARCH_ form wins when both are set.
var envAliases = map[string][]string{
	"finnhub.key":      {"RESEARCH_FINNHUB_KEY", "FINNHUB_API_KEY"},
	"edgar.user_agent": {"RESEARCH_EDGAR_USER_AGENT", "SEC_EDGAR_USER_AGENT"},
	"anthropic.key":    {"RESEARCH_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
	"log.level":        {"RESEARCH_LOG_LEVEL", "MCP_LOG_LEVEL"},
	"log.data_log":     {"RESEARCH_LOG_DATA_LOG", "MCP_ENABLE_DATA_LOG"},
	"log.workflow_log": {"RESEARCH_LOG_WORKFLOW_LOG", "MCP_ENABLE_WORKFLOW_LOG"},
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("finnhub.base_url", "https://finnhub.io/api/v1")
	v.SetDefault("finnhub.timeout_secs", 10)
	v.SetDefault("finnhub.rate_limit", 30)
	v.SetDefault("edgar.base_url", "https://www.sec.gov")
	v.SetDefault("edgar.data_url", "https://data.sec.gov")
	v.SetDefault("edgar.timeout_secs", 15)
	v.SetDefault("edgar.filings_days", 90)
	v.SetDefault("edgar.filings_limit", 10)
	v.SetDefault("edgar.forms", []string{"10-K", "10-Q", "8-K"})
	v.SetDefault("news.provider", "finnhub")
	v.SetDefault("news.feed_url", "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US")
	v.SetDefault("news.lookback_days", 7)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 400)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dir", ".cache/research-mcp")
	v.SetDefault("cache.ttl_mins", 15)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("workflow.parallel", true)
	v.SetDefault("workflow.step_timeout_secs", 20)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.workflow_log", true)
	v.SetDefault("log.data_log", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot be wired.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}
	switch c.News.Provider {
	case "finnhub", "rss":
	default:
		return eris.Errorf("config: unsupported news provider %q", c.News.Provider)
	}
	switch c.Server.Transport {
	case "stdio", "sse", "http":
	default:
		return eris.Errorf("config: unsupported server transport %q", c.Server.Transport)
	}
	return nil
}

// InitLogger initializes the global zap logger. Output goes to stderr so the
// stdio transport keeps stdout for protocol frames.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// StreamLogger returns the named child of the global logger, or a no-op
// logger when the stream is disabled.
func StreamLogger(name string, enabled bool) *zap.Logger {
	if !enabled {
		return zap.NewNop()
	}
	return zap.L().Named(name)
}
