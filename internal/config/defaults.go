package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Limits.TextMB == 0 {
		cfg.Limits.TextMB = 10
	}
	if cfg.Limits.AudioMB == 0 {
		cfg.Limits.AudioMB = 25
	}
	if cfg.Limits.VideoMB == 0 {
		cfg.Limits.VideoMB = 200
	}
	if cfg.Limits.TabularMB == 0 {
		cfg.Limits.TabularMB = 15
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.FFprobePath == "" {
		cfg.Media.FFprobePath = "ffprobe"
	}
	if cfg.Media.DirectVideoLimitMB == 0 {
		cfg.Media.DirectVideoLimitMB = 25
	}
	if cfg.Media.SegmentWindowMinutes == 0 {
		cfg.Media.SegmentWindowMinutes = 10
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	// The mock backend embeds deterministically with no network or model
	// files, so a bare config can ingest end to end. Real deployments set
	// openai, gemini, or onnx.
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.TruncateLimit == 0 {
		cfg.Embedding.TruncateLimit = 8000
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = 1
	}
	if cfg.Transcription.MaxAttempts == 0 {
		cfg.Transcription.MaxAttempts = 1
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "memory"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "/usr/local/var/torikomi/data/vectors.bin"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "torikomi_chunks"
	}
	if cfg.Catalog.DatabasePath == "" {
		cfg.Catalog.DatabasePath = "/usr/local/var/torikomi/data/catalog.db"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	if cfg.Watch.Workers == 0 {
		cfg.Watch.Workers = 4
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
