package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Brave     BraveConfig     `yaml:"brave" mapstructure:"brave"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                string  `yaml:"key" mapstructure:"key"`
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	QueryModel         string  `yaml:"query_model" mapstructure:"query_model"`
	ExtractModel       string  `yaml:"extract_model" mapstructure:"extract_model"`
	QueryMaxTokens     int     `yaml:"query_max_tokens" mapstructure:"query_max_tokens"`
	QueryTemperature   float64 `yaml:"query_temperature" mapstructure:"query_temperature"`
	ExtractMaxTokens   int     `yaml:"extract_max_tokens" mapstructure:"extract_max_tokens"`
	ExtractTemperature float64 `yaml:"extract_temperature" mapstructure:"extract_temperature"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Count   int    `yaml:"count" mapstructure:"count"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL  string `yaml:"search_base_url" mapstructure:"search_base_url"`
	ReaderFallback bool   `yaml:"reader_fallback" mapstructure:"reader_fallback"`
}

// SearchConfig configures the search gateway.
type SearchConfig struct {
	MaxCandidates    int      `yaml:"max_candidates" mapstructure:"max_candidates"`
	Providers        []string `yaml:"providers" mapstructure:"providers"`
	QPS              float64  `yaml:"qps" mapstructure:"qps"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries          int      `yaml:"retries" mapstructure:"retries"`
	DedupeByDomain   bool     `yaml:"dedupe_by_domain" mapstructure:"dedupe_by_domain"`
	SkipDomains      []string `yaml:"skip_domains" mapstructure:"skip_domains"`
	CircuitThreshold int      `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int      `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// QueryConfig configures query generation.
type QueryConfig struct {
	Min     int `yaml:"min" mapstructure:"min"`
	Max     int `yaml:"max" mapstructure:"max"`
	Retries int `yaml:"retries" mapstructure:"retries"`
}

// ScrapeConfig configures the scrape coordinator.
type ScrapeConfig struct {
	MaxFetch     int `yaml:"max_fetch" mapstructure:"max_fetch"`
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	MinDelayMS   int `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryDelayMS int `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	MaxBodyBytes int `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	SuccessFloor int `yaml:"success_floor" mapstructure:"success_floor"`

	// TLSProfile is the ClientHello fingerprint: go, chrome, firefox or random.
	TLSProfile string `yaml:"tls_profile" mapstructure:"tls_profile"`

	// ExcludePatterns replace the default download filter, e.g. "*.pdf"
	// or "/careers/*".
	ExcludePatterns []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
}

// ExtractConfig configures the extraction engine.
type ExtractConfig struct {
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxContentChars int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// PipelineConfig configures run-level limits.
type PipelineConfig struct {
	BudgetUSD        float64 `yaml:"budget_usd" mapstructure:"budget_usd"`
	MaxManufacturers int     `yaml:"max_manufacturers" mapstructure:"max_manufacturers"`

	// RetainRuns caps finished runs kept in memory for polling.
	RetainRuns int `yaml:"retain_runs" mapstructure:"retain_runs"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Brave     BravePricing            `yaml:"brave" mapstructure:"brave"`
	Jina      JinaPricing             `yaml:"jina" mapstructure:"jina"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// BravePricing holds Brave Search pricing.
type BravePricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// JinaPricing holds Jina pricing.
type JinaPricing struct {
	PerMTok      float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
	SearchTokens int     `yaml:"search_tokens" mapstructure:"search_tokens"`
}

// ScoringConfig holds the category maxima. They must sum to 100.
type ScoringConfig struct {
	Location          float64 `yaml:"location" mapstructure:"location"`
	MOQ               float64 `yaml:"moq" mapstructure:"moq"`
	Certifications    float64 `yaml:"certifications" mapstructure:"certifications"`
	Materials         float64 `yaml:"materials" mapstructure:"materials"`
	ProductionMethods float64 `yaml:"production_methods" mapstructure:"production_methods"`
	AbsentFraction    float64 `yaml:"absent_fraction" mapstructure:"absent_fraction"`
}

// StoreConfig configures the persistence sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotionConfig holds Notion API credentials for the export sink.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// ServerConfig configures the HTTP host API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOURCING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so AutomaticEnv can bind them
	// during Unmarshal.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("brave.key", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("anthropic.query_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.query_max_tokens", 2000)
	v.SetDefault("anthropic.query_temperature", 0.5)
	v.SetDefault("anthropic.extract_max_tokens", 2000)
	v.SetDefault("anthropic.extract_temperature", 0.0)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("brave.base_url", "https://api.search.brave.com")
	v.SetDefault("brave.count", 10)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.reader_fallback", false)
	v.SetDefault("search.max_candidates", 15)
	v.SetDefault("search.providers", []string{"brave", "jina"})
	v.SetDefault("search.qps", 1.0)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.retries", 2)
	v.SetDefault("search.dedupe_by_domain", true)
	v.SetDefault("search.circuit_threshold", 3)
	v.SetDefault("search.circuit_reset_secs", 30)
	v.SetDefault("query.min", 7)
	v.SetDefault("query.max", 10)
	v.SetDefault("query.retries", 1)
	v.SetDefault("scrape.max_fetch", 10)
	v.SetDefault("scrape.concurrency", 3)
	v.SetDefault("scrape.min_delay_ms", 2000)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.retry_delay_ms", 2000)
	v.SetDefault("scrape.max_text_chars", 10000)
	v.SetDefault("scrape.max_body_bytes", 5<<20)
	v.SetDefault("scrape.success_floor", 3)
	v.SetDefault("scrape.tls_profile", "go")
	v.SetDefault("extract.concurrency", 3)
	v.SetDefault("extract.max_content_chars", 8000)
	v.SetDefault("pipeline.budget_usd", 50.0)
	v.SetDefault("pipeline.max_manufacturers", 10)
	v.SetDefault("pipeline.retain_runs", 100)
	v.SetDefault("pricing.brave.per_query", 0.005)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.jina.search_tokens", 10000)
	v.SetDefault("scoring.location", 25.0)
	v.SetDefault("scoring.moq", 20.0)
	v.SetDefault("scoring.certifications", 25.0)
	v.SetDefault("scoring.materials", 15.0)
	v.SetDefault("scoring.production_methods", 15.0)
	v.SetDefault("scoring.absent_fraction", 0.2)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sourcing.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
}

// Validate checks the keys required by a command mode ("run", "serve",
// "queries", "rescore", "runs").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "serve":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Brave.Key == "" && c.Jina.Key == "" {
			errs = append(errs, "brave.key or jina.key is required")
		}
		errs = append(errs, c.validateTunables()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "queries":
		// The template fallback needs no credentials.
		if c.Query.Min < 1 || c.Query.Max < c.Query.Min {
			errs = append(errs, "query.min must be >= 1 and <= query.max")
		}
	case "rescore", "runs":
		if c.Store.Driver == "none" || c.Store.Driver == "" {
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		errs = append(errs, c.validateScoring()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateTunables() []string {
	var errs []string
	if c.Query.Min < 1 || c.Query.Max < c.Query.Min {
		errs = append(errs, "query.min must be >= 1 and <= query.max")
	}
	if c.Search.MaxCandidates < 1 {
		errs = append(errs, "search.max_candidates must be >= 1")
	}
	if c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > 20 {
		errs = append(errs, "scrape.concurrency must be between 1 and 20")
	}
	if c.Scrape.MaxFetch < 1 {
		errs = append(errs, "scrape.max_fetch must be >= 1")
	}
	if c.Scrape.MinDelayMS < 0 {
		errs = append(errs, "scrape.min_delay_ms must be >= 0")
	}
	switch c.Scrape.TLSProfile {
	case "", "go", "chrome", "firefox", "random":
	default:
		errs = append(errs, "scrape.tls_profile must be go, chrome, firefox or random")
	}
	if c.Extract.Concurrency < 1 || c.Extract.Concurrency > 20 {
		errs = append(errs, "extract.concurrency must be between 1 and 20")
	}
	if c.Pipeline.BudgetUSD < 0 {
		errs = append(errs, "pipeline.budget_usd must be >= 0")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none", "":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}
	return append(errs, c.validateScoring()...)
}

func (c *Config) validateScoring() []string {
	s := c.Scoring
	sum := s.Location + s.MOQ + s.Certifications + s.Materials + s.ProductionMethods
	if math.Abs(sum-100) > 0.01 {
		return []string{"scoring category maxima must sum to 100"}
	}
	if s.AbsentFraction < 0 || s.AbsentFraction > 1 {
		return []string{"scoring.absent_fraction must be between 0 and 1"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

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
