package config_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/linkograph/internal/config"
	"github.com/raphaelgruber/linkograph/internal/embedding"
)

var envKeys = []string{
	"LINKOGRAPH_EMBED_PROVIDER", "LINKOGRAPH_EMBEDDING_MODEL", "LINKOGRAPH_EMBED_DIMENSION",
	"LINKOGRAPH_EMBED_BATCH_SIZE", "LINKOGRAPH_EMBED_CACHE_SIZE", "LINKOGRAPH_CONCURRENCY",
	"LINKOGRAPH_WORKERS", "LINKOGRAPH_LOG_FILE", "LINKOGRAPH_LOG_LEVEL",
	"OLLAMA_HOST", "OPENAI_API_KEY", "VOYAGE_API_KEY", "AWS_REGION",
}

// isolate runs the test in an empty directory with no linkograph variables set.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range envKeys {
		// Setenv registers the restore; unsetting lets .env fill the key.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, "ollama", cfg.EmbedProvider)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 64, cfg.EmbedBatchSize)
	assert.Equal(t, 4096, cfg.EmbedCacheSize)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "custom.toml",
			content: `embed_provider = "hashing"
embed_dimension = 128
concurrency = 2
log_level = "debug"
`,
		},
		{
			name: "yaml",
			file: "custom.yaml",
			content: `embed_provider: hashing
embed_dimension: 128
concurrency: 2
log_level: debug
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, "hashing", cfg.EmbedProvider)
			assert.Equal(t, 128, cfg.EmbedDimension)
			assert.Equal(t, 2, cfg.Concurrency)
			assert.Equal(t, slog.LevelDebug, cfg.Level())
			assert.Equal(t, 64, cfg.EmbedBatchSize, "unset keys keep defaults")
		})
	}
}

func TestLoadDefaultFileInWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "linkograph.yml"), "workers: 3\n")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "linkograph.toml"), "embed_provider = \"hashing\"\nconcurrency = 2\nworkers = 2\n")
	writeFile(t, filepath.Join(dir, ".env"), "LINKOGRAPH_CONCURRENCY=5\nLINKOGRAPH_WORKERS=6\n")
	t.Setenv("LINKOGRAPH_WORKERS", "7")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "hashing", cfg.EmbedProvider, "file over default")
	assert.Equal(t, 5, cfg.Concurrency, ".env over file")
	assert.Equal(t, 7, cfg.Workers, "environment over .env")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		env     map[string]string
		errText string
	}{
		{name: "missing explicit file", file: "", errText: "stat config"},
		{name: "unknown yaml key", file: "c.yaml", content: "embed_providr: ollama\n", errText: "parse config"},
		{name: "unknown toml key", file: "c.toml", content: "concurrenci = 2\n", errText: "parse config"},
		{name: "unsupported format", file: "c.ini", content: "x=1", errText: "unsupported config format"},
		{name: "bad provider", file: "c.yaml", content: "embed_provider: word2vec\n", errText: "embed_provider"},
		{name: "zero concurrency", file: "c.yaml", content: "concurrency: 0\n", errText: "concurrency"},
		{name: "bad log level", file: "c.yaml", content: "log_level: loud\n", errText: "log_level"},
		{name: "non-numeric env", env: map[string]string{"LINKOGRAPH_WORKERS": "many"}, errText: "LINKOGRAPH_WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			switch {
			case tt.file != "":
				path = filepath.Join(dir, tt.file)
				writeFile(t, path, tt.content)
			case tt.env == nil:
				path = filepath.Join(dir, "absent.toml")
			}

			_, err := config.Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestEmbeddingConfig(t *testing.T) {
	cfg := config.Default()
	cfg.EmbedProvider = "bedrock"
	cfg.EmbeddingModel = "amazon.titan-embed-text-v2:0"
	cfg.EmbedDimension = 512
	cfg.BedrockRegion = "eu-central-1"

	got := cfg.EmbeddingConfig()
	assert.Equal(t, embedding.ProviderBedrock, got.Provider)
	assert.Equal(t, 512, got.Dimension)
	assert.Equal(t, "eu-central-1", got.BedrockRegion)
	assert.Equal(t, 64, got.BatchSize)
	assert.Equal(t, 4096, got.CacheSize)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := config.SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("episode linked", "episode", "ep1", "moves", 3)

	assert.Contains(t, stderr.String(), "episode linked")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &entry))
	assert.Equal(t, "episode linked", entry["msg"])
	assert.Equal(t, "ep1", entry["episode"])
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, cleanup := config.SetupLogger(path, slog.LevelInfo)
	logger.Info("hello", "run", "abc12345")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run":"abc12345"`)
}

func TestSetupLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, cleanup := config.SetupLogger(path, slog.LevelDebug)
	logger.Debug("traced")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source"`)
}

func TestSetupLoggerUnwritableFileFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	logger, cleanup := config.SetupLogger(filepath.Join(blocker, "run.log"), slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NoError(t, cleanup())
}
