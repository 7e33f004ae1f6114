// Package main is the torikomi CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/torikomi/internal/chunk"
	"github.com/hyperjump/torikomi/internal/classify"
	"github.com/hyperjump/torikomi/internal/cli"
	"github.com/hyperjump/torikomi/internal/config"
	"github.com/hyperjump/torikomi/internal/docid"
	"github.com/hyperjump/torikomi/internal/embedding"
	"github.com/hyperjump/torikomi/internal/extract"
	"github.com/hyperjump/torikomi/internal/media"
	"github.com/hyperjump/torikomi/internal/models"
	"github.com/hyperjump/torikomi/internal/pipeline"
	"github.com/hyperjump/torikomi/internal/server"
	"github.com/hyperjump/torikomi/internal/storage"
	"github.com/hyperjump/torikomi/internal/transcribe"
	"github.com/hyperjump/torikomi/internal/vectorstore"
	"github.com/hyperjump/torikomi/internal/watcher"
	"github.com/hyperjump/torikomi/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/torikomi/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "torikomi serve" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys come from the environment; a .env file beside the binary is
	// the local-development way to provide them.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve":
		runServe()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("torikomi version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, pipeline stages, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	exts := cfg.Watch.Extensions
	if exts == nil {
		exts = components.Classifier.Extensions()
	}
	mgr, err := watcher.NewManager(components.Pipeline, components.Catalog, components.Store, watcher.ManagerConfig{
		Roots:      cfg.Watch.Directories,
		Extensions: exts,
		Recursive:  cfg.Watch.RecursiveOrDefault(),
		Debounce:   time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		Workers:    cfg.Watch.Workers,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create watch manager", zap.Error(err))
	}
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := mgr.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	mgr.SyncExisting()

	srv := server.NewServer(
		components.Pipeline,
		components.Scheduler,
		components.Catalog,
		components.Store,
		cfg,
		logger,
		mgr,
		resolvedConfigPath,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	mgr.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	workers := fs.Int("workers", 4, "concurrent ingestions when multiple files are given")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: torikomi ingest [flags] <files-or-directories...>")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(context.Background(), cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	paths, err := expandPaths(fs.Args(), components.Classifier.Extensions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve inputs: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Println("No ingestible files found.")
		return
	}

	type outcome struct {
		Path   string `json:"path"`
		ID     string `json:"id,omitempty"`
		Chunks int    `json:"chunks,omitempty"`
		Error  string `json:"error,omitempty"`
	}
	results := make([]outcome, len(paths))

	pool, err := ants.NewPool(*workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create worker pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc, err := ingestFile(context.Background(), components.Pipeline, path)
			if err != nil {
				results[i] = outcome{Path: path, Error: err.Error()}
				return
			}
			results[i] = outcome{Path: path, ID: doc.ID, Chunks: doc.ChunkCount}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i] = outcome{Path: path, Error: err.Error()}
		}
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, res := range results {
			if res.Error != "" {
				fmt.Printf("Failed:   %s: %s\n", res.Path, res.Error)
				continue
			}
			fmt.Printf("Ingested: %s -> %s (%d chunks)\n", res.Path, res.ID, res.Chunks)
		}
		if len(paths) > 1 {
			fmt.Printf("\n%d ingested, %d failed\n", len(paths)-failed, failed)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// ingestFile runs one file through the pipeline under its path-derived ID, so
// re-running ingest on the same file replaces its records instead of
// duplicating them.
func ingestFile(ctx context.Context, pipe *pipeline.Pipeline, path string) (*models.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	upload := &models.RawUpload{Filename: filepath.Base(abs), Data: data}
	return pipe.ProcessWithID(ctx, upload, docid.FromPath(abs))
}

// expandPaths resolves the positional arguments to ingestible files. A
// directory argument is walked recursively and filtered by the supported
// extensions; an explicit file argument is taken as is, so the pipeline can
// report the unsupported-format error itself.
func expandPaths(args, extensions []string) ([]string, error) {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if extSet[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// printQueryUsage prints query subcommand usage.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: torikomi query [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The query text is embedded and matched against stored chunk vectors.
  • Use --category to restrict hits to one source category (text, audio, video, tabular).
  • Use --document to search within one document's chunks.
  • Use --server "" to read the local stores directly when no server is running.

Examples:
  torikomi query quarterly revenue forecast
  torikomi query "quarterly revenue forecast"       # same as above
  torikomi query --category audio standup notes
  torikomi query --top-k 20 --output json planning
`)
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// queryArgsReorder moves any flags (and their values) that appear after the
// query text to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument, so "torikomi query
// \"text\" -top-k 5" would otherwise leave -top-k unparsed.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// queryPayload is the POST /api/v1/query request body.
type queryPayload struct {
	Text       string `json:"text"`
	TopK       int    `json:"top_k"`
	Category   string `json:"category,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

func runQuery() {
	queryArgs := queryArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct store mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local stores directly when server is not running)")
	topK := fs.Int("top-k", 10, "number of results")
	category := fs.String("category", "", "restrict to a category: text, audio, video, or tabular")
	document := fs.String("document", "", "restrict to one document id")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(queryArgs)

	if fs.NArg() < 1 {
		printQueryUsage(fs)
		os.Exit(1)
	}
	text := buildQueryText(fs.Args())
	if text == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	payload := queryPayload{Text: text, TopK: *topK, Category: *category, DocumentID: *document}

	if *serverURL != "" {
		// Use the HTTP API when the server is running: with the memory vector
		// backend, only the server process holds the vectors.
		response, err := queryViaHTTP(*serverURL, payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteQueryResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct store access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	vectors, err := components.Scheduler.EmbedAll(ctx, []string{text})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query embedding failed: %v\n", err)
		os.Exit(1)
	}
	var filter map[string]string
	if *category != "" || *document != "" {
		filter = make(map[string]string)
		if *category != "" {
			filter[vectorstore.FieldCategory] = *category
		}
		if *document != "" {
			filter[vectorstore.FieldDocumentID] = *document
		}
	}
	results, err := components.Store.Query(ctx, vectors[0], *topK, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	response := &cli.QueryResponse{Results: results, Count: len(results)}
	if err := cli.WriteQueryResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, payload queryPayload) (*cli.QueryResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response cli.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct catalog mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the catalog directly)")
	offset := fs.Int("offset", 0, "number of rows to skip")
	limit := fs.Int("limit", 50, "maximum rows to return")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var records []*models.IngestionRecord
	if *serverURL != "" {
		records, err = listViaHTTP(*serverURL, *offset, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(context.Background(), cfg, logger, cfg.Debug)
		if err != nil {
			logger.Fatal("Failed to initialize components", zap.Error(err))
		}
		defer components.Close()
		records, err = components.Catalog.ListRecords(context.Background(), *offset, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteRecords(os.Stdout, records, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func listViaHTTP(serverURL string, offset, limit int) ([]*models.IngestionRecord, error) {
	u := fmt.Sprintf("%s/api/v1/documents?offset=%d&limit=%d", serverURL, offset, limit)
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Documents []*models.IngestionRecord `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Documents, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct store mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = delete from local stores directly)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: torikomi delete [flags] <document-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+url.PathEscape(id), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Document deleted: %s\n", id)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	rec, err := components.Catalog.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Document not found: %s\n", id)
		} else {
			fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		}
		os.Exit(1)
	}
	if rec.ChunkCount > 0 {
		ids := make([]string, rec.ChunkCount)
		for i := range ids {
			ids[i] = docid.ChunkID(id, i)
		}
		if err := components.Store.Delete(ctx, ids); err != nil {
			fmt.Fprintf(os.Stderr, "Vector deletion failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := components.Catalog.DeleteRecord(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", id)
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	EmbeddingBackend    string `json:"embedding_backend,omitempty"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	ChunkSize           int    `json:"chunk_size,omitempty"`
	ChunkOverlap        int    `json:"chunk_overlap,omitempty"`
	VectorStoreBackend  string `json:"vector_store_backend,omitempty"`
	Collection          string `json:"collection,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	VectorStorePath     string `json:"vector_store_path,omitempty"`
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Documents      int64                 `json:"documents"`
	Complete       int64                 `json:"complete"`
	Failed         int64                 `json:"failed"`
	Chunks         int64                 `json:"chunks"`
	VectorRecords  int64                 `json:"vector_records"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct store mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local stores directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		stats, err := components.Catalog.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Catalog stats failed: %v\n", err)
			os.Exit(1)
		}
		vecCount, err := components.Store.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Vector count failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Documents:     stats.Total,
			Complete:      stats.Complete,
			Failed:        stats.Failed,
			Chunks:        stats.Chunks,
			VectorRecords: vecCount,
			Config: &statusConfigResponse{
				EmbeddingBackend:    cfg.Embedding.Backend,
				EmbeddingDimensions: cfg.Embedding.Dimensions,
				ChunkSize:           cfg.Chunking.Size,
				ChunkOverlap:        cfg.Chunking.Overlap,
				VectorStoreBackend:  cfg.VectorStore.Backend,
				Collection:          cfg.VectorStore.Collection,
				DatabasePath:        cfg.Catalog.DatabasePath,
				VectorStorePath:     cfg.VectorStore.Path,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Catalog.DatabasePath, cfg.VectorStore.Path)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:        %d   # catalog rows\n", status.Documents)
		fmt.Printf("complete:         %d   # successfully ingested\n", status.Complete)
		fmt.Printf("failed:           %d   # terminal failures\n", status.Failed)
		fmt.Printf("chunks:           %d   # chunks across complete documents\n", status.Chunks)
		fmt.Printf("vector_records:   %d   # vectors in the store\n", status.VectorRecords)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d   # catalog + vector files on disk\n", *status.DiskUsageBytes)
		}
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("embedding_backend:    %s\n", status.Config.EmbeddingBackend)
			if status.Config.EmbeddingDimensions > 0 {
				fmt.Printf("embedding_dims:       %d\n", status.Config.EmbeddingDimensions)
			}
			if status.Config.ChunkSize > 0 {
				fmt.Printf("chunk_size:           %d\n", status.Config.ChunkSize)
			}
			if status.Config.ChunkOverlap > 0 {
				fmt.Printf("chunk_overlap:        %d\n", status.Config.ChunkOverlap)
			}
			fmt.Printf("vector_store_backend: %s\n", status.Config.VectorStoreBackend)
			if status.Config.Collection != "" {
				fmt.Printf("collection:           %s\n", status.Config.Collection)
			}
			if status.Config.DatabasePath != "" {
				fmt.Printf("database_path:        %s\n", status.Config.DatabasePath)
			}
			if status.Config.VectorStorePath != "" {
				fmt.Printf("vector_store_path:    %s\n", status.Config.VectorStorePath)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: torikomi watch <add|remove|list> [path]")
		fmt.Println("  torikomi watch add <path>     Add directory to watch")
		fmt.Println("  torikomi watch remove <path>  Remove directory from watch")
		fmt.Println("  torikomi watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: torikomi watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: torikomi watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds the initialized ingestion services.
type Components struct {
	Catalog    storage.Catalog
	Store      vectorstore.Store
	Embedder   embedding.Embedder
	Scheduler  *embedding.Scheduler
	Classifier *classify.Classifier
	Pipeline   *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

// limitsFromConfig converts the per-category megabyte ceilings to bytes.
func limitsFromConfig(l config.LimitsConfig) classify.Limits {
	return classify.Limits{
		Text:    l.TextMB << 20,
		Audio:   l.AudioMB << 20,
		Video:   l.VideoMB << 20,
		Tabular: l.TabularMB << 20,
	}
}

// buildEmbedder selects the embedding backend from config. API keys come from
// the environment, never from the config file.
func buildEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	e := cfg.Embedding
	switch e.Backend {
	case "openai":
		emb, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     e.BaseURL,
			Model:       e.Model,
			Dimensions:  e.Dimensions,
			MaxAttempts: e.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		return emb, nil
	case "gemini":
		emb, err := embedding.NewGeminiEmbedder(ctx, os.Getenv("GEMINI_API_KEY"), e.Model, e.Dimensions)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case "onnx":
		emb, err := embedding.NewONNXEmbedder(e.ModelPath, e.Dimensions, e.MaxTokens)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case "mock", "":
		return embedding.NewMockEmbedder(e.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: mock, openai, gemini, onnx)", e.Backend)
	}
}

// buildTranscriber wires the whisper-style client when an API key is present.
// Without a key, the mock transcriber keeps media ingestion runnable for local
// smoke tests; its output names the source file instead of transcribing it.
func buildTranscriber(cfg *config.Config, logger *zap.Logger) transcribe.Transcriber {
	key := os.Getenv("TRANSCRIBE_API_KEY")
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		logger.Warn("no transcription API key set, using mock transcriber (set TRANSCRIBE_API_KEY or OPENAI_API_KEY)")
		return &transcribe.MockTranscriber{}
	}
	return transcribe.NewClient(transcribe.Config{
		BaseURL:     cfg.Transcription.BaseURL,
		APIKey:      key,
		Model:       cfg.Transcription.Model,
		MaxAttempts: cfg.Transcription.MaxAttempts,
	}, transcribe.WithLogger(logger))
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	catalog, err := storage.NewSQLiteCatalog(cfg.Catalog.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Backend:    cfg.VectorStore.Backend,
		Path:       cfg.VectorStore.Path,
		Address:    cfg.VectorStore.Address,
		Username:   cfg.VectorStore.Username,
		Password:   os.Getenv("MILVUS_PASSWORD"),
		Database:   cfg.VectorStore.Database,
		Collection: cfg.VectorStore.Collection,
	})
	if err != nil {
		_ = embedder.Close()
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if err := store.EnsureIndex(ctx, embedder.Dimensions(), vectorstore.MetricIP); err != nil {
		_ = store.Close()
		_ = embedder.Close()
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to prepare vector index: %w", err)
	}

	mediaOpts := []media.Option{media.WithBinaries(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)}
	if cfg.Media.TempDir != "" {
		mediaOpts = append(mediaOpts, media.WithTempDir(cfg.Media.TempDir))
	}
	if debug {
		mediaOpts = append(mediaOpts, media.WithLogger(logger))
	}
	converter := media.NewFFmpeg(mediaOpts...)

	extractOpts := []extract.Option{
		extract.WithTranscriber(buildTranscriber(cfg, logger)),
		extract.WithConverter(converter),
	}
	if debug {
		extractOpts = append(extractOpts, extract.WithLogger(logger))
	}

	schedOpts := []embedding.SchedulerOption{
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithTruncateLimit(cfg.Embedding.TruncateLimit),
	}
	if debug {
		schedOpts = append(schedOpts, embedding.WithLogger(logger))
	}
	scheduler := embedding.NewScheduler(embedder, schedOpts...)

	classifier := classify.NewClassifier(limitsFromConfig(cfg.Limits))

	pipeOpts := []pipeline.Option{
		pipeline.WithConverter(converter),
		pipeline.WithCatalog(catalog),
		pipeline.WithSegmentation(cfg.Media.DirectVideoLimitMB<<20, cfg.Media.SegmentWindowMinutes),
		pipeline.WithLogger(logger),
	}
	if cfg.Media.TempDir != "" {
		pipeOpts = append(pipeOpts, pipeline.WithTempDir(cfg.Media.TempDir))
	}

	pipe := pipeline.NewPipeline(
		classifier,
		extract.NewExtractor(extractOpts...),
		chunk.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		scheduler,
		store,
		pipeOpts...,
	)

	return &Components{
		Catalog:    catalog,
		Store:      store,
		Embedder:   embedder,
		Scheduler:  scheduler,
		Classifier: classifier,
		Pipeline:   pipe,
	}, nil
}

func printUsage() {
	fmt.Println(`torikomi - Multimodal document ingestion for semantic search

Usage:
  torikomi serve [flags]            Start the HTTP API and watch folders
  torikomi ingest [flags] <files>   Ingest files or directories
  torikomi query [flags] <text>     Search ingested chunks semantically
  torikomi list [flags]             List ingested documents
  torikomi delete [flags] <id>      Delete a document and its vectors
  torikomi status [flags]           Show catalog and vector store status
  torikomi watch <add|remove|list>  Manage watched directories
  torikomi version                  Show version
  torikomi help                     Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/torikomi/config.yaml)
  --debug            Enable debug logging (watch events, pipeline stages, etc.)

Ingest Flags:
  --config string    Config file path
  --workers int      Concurrent ingestions for multiple files (default: 4)
  --output string    Output format: text or json (default: text)

Query Flags:
  --config string    Config file path (for direct store mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct store access.
  --top-k int        Number of results (default: 10)
  --category string  Restrict to a category: text, audio, video, or tabular
  --document string  Restrict to one document id
  --output string    Output format: text, compact, or json (default: text)

List Flags:
  --server string    Server URL (empty = read the catalog directly)
  --offset int       Rows to skip (default: 0)
  --limit int        Maximum rows (default: 50)
  --output string    Output format: text or json

Delete Flags:
  --server string    Server URL (empty = delete from local stores directly)

Status Flags:
  --config string    Config file path (for direct store mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct store access.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Environment:
  OPENAI_API_KEY       OpenAI embeddings and whisper transcription
  GEMINI_API_KEY       Gemini embeddings
  TRANSCRIBE_API_KEY   Transcription service key (falls back to OPENAI_API_KEY)
  MILVUS_PASSWORD      Milvus vector store password

Examples:
  torikomi serve
  torikomi ingest report.pdf meeting.mp3
  torikomi ingest --workers 8 ./inbox
  torikomi query "quarterly revenue forecast"
  torikomi query --category audio --output json standup
  torikomi list
  torikomi delete 6de75959a1b2
  torikomi status
  torikomi watch add /path/to/docs`)
}
