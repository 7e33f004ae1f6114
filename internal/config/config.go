// Package config provides configuration loading and structs for the torikomi server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. Secrets (API keys, the
// Milvus password) are never read from this file; they come from the
// environment.
type Config struct {
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Limits        LimitsConfig        `yaml:"limits"`
	Media         MediaConfig         `yaml:"media"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Watch         WatchConfig         `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LimitsConfig holds per-category upload ceilings in megabytes. Zero means
// the category default.
type LimitsConfig struct {
	TextMB    int64 `yaml:"text_mb"`
	AudioMB   int64 `yaml:"audio_mb"`
	VideoMB   int64 `yaml:"video_mb"`
	TabularMB int64 `yaml:"tabular_mb"`
}

// MediaConfig holds ffmpeg settings and the temp directory for materialized
// media files.
type MediaConfig struct {
	FFmpegPath           string `yaml:"ffmpeg_path"`
	FFprobePath          string `yaml:"ffprobe_path"`
	TempDir              string `yaml:"temp_dir"`
	DirectVideoLimitMB   int64  `yaml:"direct_video_limit_mb"`
	SegmentWindowMinutes int    `yaml:"segment_window_minutes"`
}

// ChunkingConfig holds chunk size and overlap, both in bytes.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedder settings. Backend selects the
// implementation: mock, openai, gemini, or onnx. The openai and gemini
// backends read their API keys from OPENAI_API_KEY and GEMINI_API_KEY.
type EmbeddingConfig struct {
	Backend       string `yaml:"backend"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	ModelPath     string `yaml:"model_path"`
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	BatchSize     int    `yaml:"batch_size"`
	TruncateLimit int    `yaml:"truncate_limit"`
	CacheSize     int    `yaml:"cache_size"`
	MaxAttempts   int    `yaml:"max_attempts"`
}

// TranscriptionConfig holds settings for the whisper-style transcription
// API. The API key comes from TRANSCRIBE_API_KEY, falling back to
// OPENAI_API_KEY.
type TranscriptionConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// VectorStoreConfig holds vector store settings. Backend is memory or
// milvus. Path is the persistence file for the memory backend; the milvus
// password comes from MILVUS_PASSWORD.
type VectorStoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// CatalogConfig holds the ingestion catalog location.
type CatalogConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds directory watch settings. Empty Extensions means every
// supported extension.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
	Workers     int      `yaml:"workers"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true
// when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.DatabasePath = expandPath(cfg.Catalog.DatabasePath, configDir)
	cfg.VectorStore.Path = expandPath(cfg.VectorStore.Path, configDir)
	cfg.Media.TempDir = expandPath(cfg.Media.TempDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty:
// optional paths keep their unset meaning.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
