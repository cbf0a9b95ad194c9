package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// Config holds the retriever configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Sparse      SparseConfig      `yaml:"sparse"`
	Redis       RedisConfig       `yaml:"redis"`
	Feed        FeedConfig        `yaml:"feed"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Search      SearchConfig      `yaml:"search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // covers synchronous ingestion
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// VectorStoreConfig holds vector store connection and collection settings.
type VectorStoreConfig struct {
	Driver           string `yaml:"driver"` // qdrant, memory (default: qdrant)
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"` // gRPC port
	APIKey           string `yaml:"api_key"`
	TLS              bool   `yaml:"tls"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	Distance         string `yaml:"distance"` // cosine, dot, euclid
	SparseIDF        bool   `yaml:"sparse_idf"`
	PayloadIndexes   bool   `yaml:"payload_indexes"`
}

// EmbeddingConfig holds dense embedding settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, fastembed (default: openai)
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	User       string `yaml:"user"`
	// RateLimitRPS caps provider calls per second. 0 = unlimited.
	RateLimitRPS   float64         `yaml:"rate_limit_rps"`
	RateLimitBurst int             `yaml:"rate_limit_burst"`
	Concurrency    int             `yaml:"concurrency"` // parallel dense calls during ingestion
	Budget         BudgetConfig    `yaml:"budget"`
	Cache          CacheConfig     `yaml:"cache"`
	FastEmbed      FastEmbedConfig `yaml:"fastembed"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// CacheConfig controls the Redis embedding cache. Ignored without redis.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// FastEmbedConfig holds local model settings.
type FastEmbedConfig struct {
	CacheDir  string `yaml:"cache_dir"`
	MaxLength int    `yaml:"max_length"`
}

// SparseConfig tunes the BM25 lexical encoder.
type SparseConfig struct {
	K1          float64 `yaml:"k1"`
	B           float64 `yaml:"b"`
	AvgLen      float64 `yaml:"avg_len"`
	Language    string  `yaml:"language"` // spanish, none
	FoldAccents bool    `yaml:"fold_accents"`
	MinTokenLen int     `yaml:"min_token_len"`
}

// RedisConfig holds optional Redis settings. Empty addrs disables Redis.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool { return len(r.Addrs) > 0 }

// FeedConfig holds property feed client settings.
type FeedConfig struct {
	BaseURL        string `yaml:"base_url"`
	PageSize       int    `yaml:"page_size"`
	Lang           string `yaml:"lang"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	FailurePolicy string `yaml:"failure_policy"` // fail_fast (default), best_effort
	LockTTLSec    int    `yaml:"lock_ttl_sec"`
	JobTTLSec     int    `yaml:"job_ttl_sec"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit  int    `yaml:"default_limit"`
	MaxLimit      int    `yaml:"max_limit"`
	DefaultTenant string `yaml:"default_tenant"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	configPath := findConfigPath(env)
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment references in data, decodes it and validates the result.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w: %w", err, domain.ErrConfiguration)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads path into the process environment. A missing file is not an error;
// variables already set win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 600
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = "qdrant"
	}
	if c.VectorStore.Port <= 0 {
		c.VectorStore.Port = 6334
	}
	if c.VectorStore.ReadinessTimeout <= 0 {
		c.VectorStore.ReadinessTimeout = 10
	}
	if c.VectorStore.Distance == "" {
		c.VectorStore.Distance = "cosine"
	}

	vc := domain.DefaultVectorConfig()
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" && c.Embedding.Provider == "openai" {
		c.Embedding.Model = vc.Model
	}
	if c.Embedding.Dimensions <= 0 && c.Embedding.Provider == "openai" {
		c.Embedding.Dimensions = vc.Dimensions
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 1
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 30 * 24 * 3600
	}

	if c.Sparse.K1 <= 0 {
		c.Sparse.K1 = 1.2
	}
	if c.Sparse.B <= 0 {
		c.Sparse.B = 0.75
	}
	if c.Sparse.AvgLen <= 0 {
		c.Sparse.AvgLen = 256
	}
	if c.Sparse.Language == "" {
		c.Sparse.Language = "spanish"
	}

	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://www.tokkobroker.com"
	}
	if c.Feed.PageSize <= 0 {
		c.Feed.PageSize = 1000
	}
	if c.Feed.Lang == "" {
		c.Feed.Lang = "es_ar"
	}
	if c.Feed.TimeoutSec <= 0 {
		c.Feed.TimeoutSec = 60
	}
	if c.Feed.MaxRetries < 0 {
		c.Feed.MaxRetries = 0
	}
	if c.Feed.RetryBackoffMs <= 0 {
		c.Feed.RetryBackoffMs = 1000
	}

	if c.Ingest.FailurePolicy == "" {
		c.Ingest.FailurePolicy = "fail_fast"
	}
	if c.Ingest.LockTTLSec <= 0 {
		c.Ingest.LockTTLSec = 1800
	}
	if c.Ingest.JobTTLSec <= 0 {
		c.Ingest.JobTTLSec = 86400
	}

	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
}

// Validate checks the configuration for correctness. Violations wrap domain.ErrConfiguration.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return invalid("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.VectorStore.Driver {
	case "qdrant":
		if c.VectorStore.Host == "" {
			return invalid("vector_store.host is required for the qdrant driver")
		}
	case "memory":
	default:
		return invalid("vector_store.driver must be \"qdrant\" or \"memory\", got %q", c.VectorStore.Driver)
	}
	switch c.VectorStore.Distance {
	case "cosine", "dot", "euclid":
	default:
		return invalid("vector_store.distance must be cosine, dot or euclid, got %q", c.VectorStore.Distance)
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			return invalid("embedding.api_key is required for the openai provider")
		}
	case "fastembed":
	default:
		return invalid("embedding.provider must be \"openai\" or \"fastembed\", got %q", c.Embedding.Provider)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return invalid("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Embedding.RateLimitRPS < 0 {
		return invalid("embedding.rate_limit_rps must not be negative")
	}

	switch c.Sparse.Language {
	case "spanish", "none":
	default:
		return invalid("sparse.language must be \"spanish\" or \"none\", got %q", c.Sparse.Language)
	}
	if c.Sparse.B > 1 {
		return invalid("sparse.b must be within [0, 1], got %g", c.Sparse.B)
	}

	switch c.Ingest.FailurePolicy {
	case "fail_fast", "best_effort":
	default:
		return invalid("ingest.failure_policy must be \"fail_fast\" or \"best_effort\", got %q", c.Ingest.FailurePolicy)
	}

	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return invalid("search.default_limit (%d) exceeds search.max_limit (%d)", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.DefaultTenant != "" {
		if err := domain.ValidateTenant(c.Search.DefaultTenant); err != nil {
			return invalid("search.default_tenant: %v", err)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrConfiguration)
}

// ReadTimeout returns the HTTP read timeout.
func (h HTTPConfig) ReadTimeout() time.Duration { return time.Duration(h.ReadTimeoutSec) * time.Second }

// WriteTimeout returns the HTTP write timeout.
func (h HTTPConfig) WriteTimeout() time.Duration { return time.Duration(h.WriteTimeoutSec) * time.Second }

// ShutdownTimeout returns the graceful shutdown budget.
func (h HTTPConfig) ShutdownTimeout() time.Duration { return time.Duration(h.ShutdownSec) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
