// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	RAG     RAGConfig     `yaml:"rag"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the metadata database, the persisted vector
// store, and uploaded/parsed document files.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	VectorDir    string `yaml:"vector_dir"`
	UploadDir    string `yaml:"upload_dir"`
	ParsedDir    string `yaml:"parsed_dir"`
	// MaxFileSize caps uploads, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// AllowedFileTypes lists accepted upload extensions (without dot).
	AllowedFileTypes []string `yaml:"allowed_file_types"`
}

// LLMConfig holds provider settings for embeddings, generation, and rerank.
// The provider exposes an OpenAI-compatible API plus a /rerank endpoint.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	RerankModel    string `yaml:"rerank_model"`
	// RequestTimeout is in seconds.
	RequestTimeout int `yaml:"request_timeout"`
	// EmbedBatchSize bounds how many texts go into one embedding request.
	EmbedBatchSize int `yaml:"embed_batch_size"`
	// EmbedMaxChars truncates each text before embedding to stay inside the
	// provider's token budget.
	EmbedMaxChars int     `yaml:"embed_max_chars"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

// RAGConfig holds chunking, retrieval, and answer scoring settings.
type RAGConfig struct {
	ChunkMaxChars       int     `yaml:"chunk_max_chars"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	TopK                int     `yaml:"top_k"`
	RerankTopN          int     `yaml:"rerank_top_n"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	SnippetLength       int     `yaml:"snippet_length"`
	// PreviewLength bounds the chunk text stored alongside each vector record.
	PreviewLength int `yaml:"preview_length"`
}

// IngestConfig holds background ingestion pool settings.
type IngestConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// WatchCourse maps one directory to the course its files are ingested into.
type WatchCourse struct {
	CourseID  string `yaml:"course_id"`
	Directory string `yaml:"directory"`
}

// WatchConfig holds directory watch settings for automatic ingestion.
type WatchConfig struct {
	Courses    []WatchCourse `yaml:"courses"`
	Extensions []string      `yaml:"extensions"`
	Recursive  *bool         `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, and
// expands relative paths. Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorDir = expandPath(cfg.Storage.VectorDir, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.ParsedDir = expandPath(cfg.Storage.ParsedDir, configDir)
	for i := range cfg.Watch.Courses {
		cfg.Watch.Courses[i].Directory = expandPath(cfg.Watch.Courses[i].Directory, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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
