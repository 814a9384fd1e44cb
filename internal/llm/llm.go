// Package llm provides clients for the embedding, generation, and rerank
// models behind an OpenAI-compatible provider API.
package llm

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces chat completions for an evidence-grounded prompt.
// GenerateStream delivers incremental text deltas through onDelta and
// returns the accumulated full answer.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	GenerateStream(ctx context.Context, system, prompt string, onDelta func(text string) error) (string, error)
}

// RerankResult scores one candidate document by relevance to the query.
// Index refers to the position in the submitted document list.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Reranker reorders candidate documents by relevance to a query, returning
// at most topN results sorted by descending score.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}
