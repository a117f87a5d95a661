// Package config loads linkograph settings from defaults, a config file, .env and
// the environment, in that order of precedence (lowest first).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/linkograph/internal/embedding"
)

// DefaultFiles are looked up in the working directory when no config path is given.
var DefaultFiles = []string{"linkograph.toml", "linkograph.yaml", "linkograph.yml"}

// Config holds all configuration values.
type Config struct {
	// Embedding provider
	EmbedProvider  string `yaml:"embed_provider" toml:"embed_provider"`
	EmbeddingModel string `yaml:"embedding_model" toml:"embedding_model"`
	EmbedDimension int    `yaml:"embed_dimension" toml:"embed_dimension"`
	OllamaHost     string `yaml:"ollama_host" toml:"ollama_host"`
	OpenAIAPIKey   string `yaml:"openai_api_key" toml:"openai_api_key"`
	VoyageAPIKey   string `yaml:"voyage_api_key" toml:"voyage_api_key"`
	BedrockRegion  string `yaml:"bedrock_region" toml:"bedrock_region"`
	EmbedBatchSize int    `yaml:"embed_batch_size" toml:"embed_batch_size"`
	EmbedCacheSize int    `yaml:"embed_cache_size" toml:"embed_cache_size"`

	// Linking
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
	Workers     int `yaml:"workers" toml:"workers"`

	// Logging
	LogFile  string `yaml:"log_file" toml:"log_file"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		EmbedProvider:  string(embedding.ProviderOllama),
		OllamaHost:     embedding.DefaultOllamaHost,
		EmbedBatchSize: 64,
		EmbedCacheSize: 4096,
		Concurrency:    4,
		Workers:        runtime.GOMAXPROCS(0),
		LogFile:        filepath.Join(os.TempDir(), "linkograph.log"),
		LogLevel:       "INFO",
	}
}

// Load builds the configuration. path names a .yaml, .yml or .toml file and must
// exist when given; when empty, the first of DefaultFiles present is used.
func Load(path string) (Config, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	if resolved != "" {
		if err := decodeFile(resolved, &cfg); err != nil {
			return Config{}, err
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("stat config: %w", err)
		}
		return path, nil
	}
	for _, name := range DefaultFiles {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
	}
	return "", nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty file decodes to io.EOF; defaults stand.
		if err := dec.Decode(cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"LINKOGRAPH_EMBED_PROVIDER", &c.EmbedProvider},
		{"LINKOGRAPH_EMBEDDING_MODEL", &c.EmbeddingModel},
		{"OLLAMA_HOST", &c.OllamaHost},
		{"OPENAI_API_KEY", &c.OpenAIAPIKey},
		{"VOYAGE_API_KEY", &c.VoyageAPIKey},
		{"AWS_REGION", &c.BedrockRegion},
		{"LINKOGRAPH_LOG_FILE", &c.LogFile},
		{"LINKOGRAPH_LOG_LEVEL", &c.LogLevel},
	}
	for _, s := range strs {
		if val := os.Getenv(s.key); val != "" {
			*s.dst = val
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LINKOGRAPH_EMBED_DIMENSION", &c.EmbedDimension},
		{"LINKOGRAPH_EMBED_BATCH_SIZE", &c.EmbedBatchSize},
		{"LINKOGRAPH_EMBED_CACHE_SIZE", &c.EmbedCacheSize},
		{"LINKOGRAPH_CONCURRENCY", &c.Concurrency},
		{"LINKOGRAPH_WORKERS", &c.Workers},
	}
	for _, i := range ints {
		val := os.Getenv(i.key)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: %w", i.key, err)
		}
		*i.dst = n
	}
	return nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(embedding.Providers, embedding.ProviderType(c.EmbedProvider)) {
		errs = append(errs, fmt.Errorf("embed_provider %q is not one of %v", c.EmbedProvider, embedding.Providers))
	}
	if c.EmbedDimension < 0 {
		errs = append(errs, fmt.Errorf("embed_dimension must not be negative"))
	}
	if c.EmbedBatchSize < 0 {
		errs = append(errs, fmt.Errorf("embed_batch_size must not be negative"))
	}
	if c.EmbedCacheSize < 0 {
		errs = append(errs, fmt.Errorf("embed_cache_size must not be negative"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1"))
	}
	if _, ok := parseLogLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of DEBUG, INFO, WARN, ERROR", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, INFO when unset or unknown.
func (c Config) Level() slog.Level {
	level, _ := parseLogLevel(c.LogLevel)
	return level
}

// EmbeddingConfig maps the settings onto the embedding factory's config.
func (c Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		Provider:      embedding.ProviderType(c.EmbedProvider),
		Model:         c.EmbeddingModel,
		Dimension:     c.EmbedDimension,
		OllamaHost:    c.OllamaHost,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		VoyageAPIKey:  c.VoyageAPIKey,
		BedrockRegion: c.BedrockRegion,
		BatchSize:     c.EmbedBatchSize,
		CacheSize:     c.EmbedCacheSize,
	}
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO", "":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
