// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path actually loaded.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "import":
		runImport()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Kotae - course knowledge base with retrieval-augmented answers

Usage:
  kotae server [-config path] [-debug]        Start the API server
  kotae import [-config path] -course <id> <file-or-directory>
                                              Ingest local files into a course
  kotae search [-course id] [-output fmt] <query>
                                              Search course chunks
  kotae ask [-course id] [-output fmt] <question>
                                              Ask a question against a course
  kotae status [-output fmt]                  Show server statistics
  kotae version                               Show version

Search, ask, and status talk to a running server (default http://localhost:8080,
override with -server). Import works directly on the configured storage.`)
}

// components holds the wired pipeline shared by server and import modes.
type components struct {
	Storage   *storage.SQLiteStorage
	Vectors   vectorstore.Store
	Manager   *ingest.Manager
	Retriever *retrieval.Retriever
	Answerer  *answer.Synthesizer
	cancel    context.CancelFunc
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	vectors := vectorstore.NewChromemStore(cfg.Storage.VectorDir, vectorstore.WithLogger(logger))

	client, err := llm.NewClient(cfg.LLM, llm.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("llm api_key is empty; embedding and generation requests will fail")
	}

	manager := ingest.NewManager(store, vectors, client, cfg, ingest.WithLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("start ingest manager: %w", err)
	}

	retriever := retrieval.NewRetriever(vectors, client,
		retrieval.WithLogger(logger),
		retrieval.WithReranker(client, cfg.RAG.RerankTopN),
		retrieval.WithSnippetLength(cfg.RAG.SnippetLength),
	)
	answerer := answer.NewSynthesizer(retriever, client, store, cfg.RAG.ConfidenceThreshold,
		answer.WithLogger(logger))

	return &components{
		Storage:   store,
		Vectors:   vectors,
		Manager:   manager,
		Retriever: retriever,
		Answerer:  answerer,
		cancel:    cancel,
	}, nil
}

func (c *components) Close() {
	c.cancel()
	c.Manager.Stop()
	_ = c.Storage.Close()
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
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

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Courses) > 0 {
		ingestor := watcher.NewIngestor(comps.Storage, comps.Vectors, comps.Manager, cfg, logger)
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Courses,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			ingestor.HandleFile,
			ingestor.HandleRemove,
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		comps.Storage,
		comps.Vectors,
		comps.Manager,
		comps.Retriever,
		comps.Answerer,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	courseID := fs.String("course", "", "course to ingest into (required)")
	_ = fs.Parse(os.Args[2:])

	if *courseID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: kotae import [-config path] -course <id> <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer comps.Close()

	files, err := collectFiles(path, cfg.Watch.Extensions)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No matching files found")
		os.Exit(1)
	}

	ctx := context.Background()
	failed := 0
	for _, f := range files {
		if err := importFile(ctx, comps, *courseID, f); err != nil {
			failed++
			fmt.Printf("FAILED  %s: %v\n", f, err)
			continue
		}
		fmt.Printf("ok      %s\n", f)
	}
	fmt.Printf("Imported %d file(s), %d failed\n", len(files)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// collectFiles expands path into the list of files to import; directories
// are walked and filtered by the configured extensions.
func collectFiles(path string, extensions []string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{abs}, nil
	}
	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		for _, e := range extensions {
			if strings.TrimPrefix(strings.ToLower(e), ".") == strings.TrimPrefix(ext, ".") {
				files = append(files, p)
				break
			}
		}
		return nil
	})
	return files, err
}

// importFile registers one file as a course document and waits for its
// ingestion to finish.
func importFile(ctx context.Context, comps *components, courseID, path string) error {
	docID := fileid.WatchDocID(courseID, path)
	if _, err := comps.Storage.GetDocument(ctx, docID); err != nil {
		doc := &models.Document{
			ID:          docID,
			CourseID:    courseID,
			FileName:    filepath.Base(path),
			FileType:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			StoragePath: path,
			Status:      models.DocumentStatusUploaded,
		}
		if err := comps.Storage.CreateDocument(ctx, doc); err != nil {
			return err
		}
	}

	task, err := comps.Manager.Enqueue(ctx, docID, nil)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(10 * time.Minute)
	for time.Now().Before(deadline) {
		t, err := comps.Manager.GetStatus(ctx, task.TaskID)
		if err != nil {
			return err
		}
		switch t.Status {
		case models.TaskDone:
			return nil
		case models.TaskFailed:
			return fmt.Errorf("%s", t.Error)
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("ingestion timed out")
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	courseID := fs.String("course", "", "course to search (required)")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	if *courseID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: kotae search [-server url] -course <id> [-output fmt] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	req := &models.SearchRequest{CourseID: *courseID, Query: query, TopK: *topK}
	var resp models.SearchResponse
	if err := postAPI(*serverURL+"/api/v1/search", req, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, &resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	courseID := fs.String("course", "", "course to ask against (required)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	if *courseID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [-server url] -course <id> [-output fmt] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	req := &models.AskRequest{CourseID: *courseID, Question: question}
	var resp models.AskResponse
	if err := postAPI(*serverURL+"/api/v1/ask", req, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAskResponse(os.Stdout, &resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var status struct {
		Documents      int64                  `json:"documents"`
		Chunks         int64                  `json:"chunks"`
		DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
		Config         map[string]interface{} `json:"config,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
	case "text":
		fmt.Printf("documents:        %d\n", status.Documents)
		fmt.Printf("chunks:           %d\n", status.Chunks)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println("\n# configuration")
			for _, k := range []string{"chunk_max_chars", "chunk_overlap", "top_k", "rerank_top_n", "confidence_threshold", "embedding_model", "chat_model"} {
				if v, ok := status.Config[k]; ok {
					fmt.Printf("%-21s %v\n", k+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func postAPI(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
