package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docingest service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Selector   SelectorConfig   `yaml:"selector"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, sqlite (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // sqlite file
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Object store drivers.
const (
	ObjectStoreFS  = "fs"
	ObjectStoreGCS = "gcs"
)

// StorageConfig holds key namespace and object store settings.
type StorageConfig struct {
	KeyPrefix      string `yaml:"key_prefix"`
	ObjectDriver   string `yaml:"object_driver"` // fs, gcs (default: fs)
	RootDir        string `yaml:"root_dir"`
	Bucket         string `yaml:"bucket"`
	Endpoint       string `yaml:"endpoint"` // gcs emulator
	MaxObjectBytes int64  `yaml:"max_object_bytes"`
}

// IngestionConfig holds pipeline settings.
type IngestionConfig struct {
	MaxTextLength     int `yaml:"max_text_length"`
	MinTextLength     int `yaml:"min_text_length"`
	ChunkTargetLength int `yaml:"chunk_target_length"`
	WorkerPoolSize    int `yaml:"worker_pool_size"`
	WorkerTimeoutSec  int `yaml:"worker_timeout_sec"`
	DefaultPageSize   int `yaml:"default_page_size"`
	MaxPageSize       int `yaml:"max_page_size"`
}

// SelectorConfig holds MMR selection defaults.
type SelectorConfig struct {
	K      int      `yaml:"k"`
	Lambda *float64 `yaml:"lambda"` // any value is accepted; nil means 0.7
}

// SummarizerConfig holds the chat-completion provider settings.
type SummarizerConfig struct {
	Provider      string `yaml:"provider"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Prompt        string `yaml:"prompt"`
	MaxInputChars int    `yaml:"max_input_chars"`
	MaxTokens     int    `yaml:"max_tokens"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// EmbeddingConfig holds the optional embedding provider. An empty model disables it.
type EmbeddingConfig struct {
	Provider           string      `yaml:"provider"`
	BaseURL            string      `yaml:"base_url"`
	APIKey             string      `yaml:"api_key"`
	Model              string      `yaml:"model"`
	Dimensions         int         `yaml:"dimensions"`
	Instruction        string      `yaml:"instruction"`         // query prefix for asymmetric models
	PassageInstruction string      `yaml:"passage_instruction"` // segment prefix
	MaxBatchSize       int         `yaml:"max_batch_size"`
	TimeoutSec         int         `yaml:"timeout_sec"`
	Cache              CacheConfig `yaml:"cache"`
}

// Enabled reports whether an embedding model is configured.
func (e EmbeddingConfig) Enabled() bool { return e.Model != "" }

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 keeps entries forever
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "docingest.db"
	}

	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "docingest:"
	}
	if c.Storage.ObjectDriver == "" {
		c.Storage.ObjectDriver = ObjectStoreFS
	}
	if c.Storage.MaxObjectBytes <= 0 {
		c.Storage.MaxObjectBytes = 64 << 20
	}

	if c.Ingestion.MaxTextLength <= 0 {
		c.Ingestion.MaxTextLength = 500_000
	}
	if c.Ingestion.MinTextLength <= 0 {
		c.Ingestion.MinTextLength = 10
	}
	if c.Ingestion.ChunkTargetLength <= 0 {
		c.Ingestion.ChunkTargetLength = 1600
	}
	if c.Ingestion.WorkerPoolSize <= 0 {
		c.Ingestion.WorkerPoolSize = 8
	}
	if c.Ingestion.WorkerTimeoutSec <= 0 {
		c.Ingestion.WorkerTimeoutSec = 300
	}
	if c.Ingestion.DefaultPageSize <= 0 {
		c.Ingestion.DefaultPageSize = 20
	}
	if c.Ingestion.MaxPageSize <= 0 {
		c.Ingestion.MaxPageSize = 100
	}

	if c.Selector.K <= 0 {
		c.Selector.K = 12
	}
	if c.Selector.Lambda == nil {
		lambda := 0.7
		c.Selector.Lambda = &lambda
	}

	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = "openai"
	}
	if c.Summarizer.MaxInputChars <= 0 {
		c.Summarizer.MaxInputChars = 24_000
	}
	if c.Summarizer.MaxTokens <= 0 {
		c.Summarizer.MaxTokens = 512
	}
	if c.Summarizer.TimeoutSec <= 0 {
		c.Summarizer.TimeoutSec = 60
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = c.Summarizer.Provider
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = c.Summarizer.BaseURL
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.Summarizer.APIKey
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
}

// LambdaOrDefault returns the configured selector lambda.
func (s SelectorConfig) LambdaOrDefault() float64 {
	if s.Lambda == nil {
		return 0.7
	}
	return *s.Lambda
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be valkey, redis or sqlite, got %q", c.Database.Driver)
	}

	switch c.Storage.ObjectDriver {
	case ObjectStoreFS:
		if c.Storage.RootDir == "" {
			return errors.New("storage.root_dir is required for the fs object driver")
		}
	case ObjectStoreGCS:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the gcs object driver")
		}
	default:
		return fmt.Errorf("storage.object_driver must be fs or gcs, got %q", c.Storage.ObjectDriver)
	}

	if c.Ingestion.MinTextLength > c.Ingestion.MaxTextLength {
		return fmt.Errorf("ingestion.min_text_length (%d) must not exceed ingestion.max_text_length (%d)",
			c.Ingestion.MinTextLength, c.Ingestion.MaxTextLength)
	}

	if c.Summarizer.Model == "" {
		return errors.New("summarizer.model is required")
	}

	if c.Embedding.Cache.TTLSec < 0 {
		return fmt.Errorf("embedding.cache.ttl_sec must not be negative, got %d", c.Embedding.Cache.TTLSec)
	}
	return nil
}

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
