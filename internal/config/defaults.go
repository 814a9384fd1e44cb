package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/kotae.db"
	}
	if cfg.Storage.VectorDir == "" {
		cfg.Storage.VectorDir = "/usr/local/var/kotae/data/vectors"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/kotae/data/raw"
	}
	if cfg.Storage.ParsedDir == "" {
		cfg.Storage.ParsedDir = "/usr/local/var/kotae/data/parsed"
	}
	if cfg.Storage.MaxFileSize == 0 {
		cfg.Storage.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Storage.AllowedFileTypes == nil {
		cfg.Storage.AllowedFileTypes = []string{"pdf", "docx", "pptx", "md", "txt"}
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.siliconflow.cn/v1"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "BAAI/bge-large-zh-v1.5"
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "Qwen/Qwen2.5-7B-Instruct"
	}
	if cfg.LLM.RerankModel == "" {
		cfg.LLM.RerankModel = "BAAI/bge-reranker-large"
	}
	if cfg.LLM.RequestTimeout == 0 {
		cfg.LLM.RequestTimeout = 30
	}
	if cfg.LLM.EmbedBatchSize == 0 {
		cfg.LLM.EmbedBatchSize = 16
	}
	if cfg.LLM.EmbedMaxChars == 0 {
		cfg.LLM.EmbedMaxChars = 400
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.RAG.ChunkMaxChars == 0 {
		cfg.RAG.ChunkMaxChars = 800
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 120
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 12
	}
	if cfg.RAG.RerankTopN == 0 {
		cfg.RAG.RerankTopN = 6
	}
	if cfg.RAG.ConfidenceThreshold == 0 {
		cfg.RAG.ConfidenceThreshold = 0.45
	}
	if cfg.RAG.SnippetLength == 0 {
		cfg.RAG.SnippetLength = 200
	}
	if cfg.RAG.PreviewLength == 0 {
		cfg.RAG.PreviewLength = 2000
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = 32
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 2
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".pptx", ".md", ".txt"}
	}
	if len(cfg.Watch.Courses) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
