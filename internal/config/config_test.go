package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
catalog:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Catalog.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
catalog:
  database_path: "./data/catalog.db"
vector_store:
  path: "./data/vectors.bin"
watch:
  directories: ["./inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "catalog.db")
	if cfg.Catalog.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Catalog.DatabasePath, wantDB)
	}
	wantVec := filepath.Join(dir, "data", "vectors.bin")
	if cfg.VectorStore.Path != wantVec {
		t.Errorf("vector path = %s, want %s", cfg.VectorStore.Path, wantVec)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "inbox")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestLoad_emptyOptionalPathsStayEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Media.TempDir != "" {
		t.Errorf("temp_dir should stay unset, got %s", cfg.Media.TempDir)
	}
	if cfg.Embedding.ModelPath != "" {
		t.Errorf("model_path should stay unset, got %s", cfg.Embedding.ModelPath)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Limits.TextMB != 10 || cfg.Limits.AudioMB != 25 || cfg.Limits.VideoMB != 200 || cfg.Limits.TabularMB != 15 {
		t.Errorf("default limits: %+v", cfg.Limits)
	}
	if cfg.Media.DirectVideoLimitMB != 25 || cfg.Media.SegmentWindowMinutes != 10 {
		t.Errorf("default media: %+v", cfg.Media)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("default chunking: %+v", cfg.Chunking)
	}
	if cfg.Embedding.Backend != "mock" {
		t.Errorf("default embedding backend: got %s", cfg.Embedding.Backend)
	}
	if cfg.Embedding.BatchSize != 16 || cfg.Embedding.TruncateLimit != 8000 {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Embedding.MaxAttempts != 1 {
		t.Errorf("retry should default off: max_attempts = %d", cfg.Embedding.MaxAttempts)
	}
	if cfg.VectorStore.Backend != "memory" {
		t.Errorf("default vector store backend: got %s", cfg.VectorStore.Backend)
	}
	if cfg.VectorStore.Collection != "torikomi_chunks" {
		t.Errorf("default collection: got %s", cfg.VectorStore.Collection)
	}
	if cfg.Catalog.DatabasePath == "" {
		t.Error("catalog database_path should have a default")
	}
	if cfg.Watch.DebounceMS != 500 || cfg.Watch.Workers != 4 {
		t.Errorf("default watch: %+v", cfg.Watch)
	}
	if cfg.Watch.Extensions != nil {
		t.Errorf("watch extensions should stay nil (meaning all supported): %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &WatchConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Catalog: CatalogConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
