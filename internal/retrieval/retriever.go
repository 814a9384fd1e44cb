// Package retrieval answers search requests against a course's vector
// collection, with an optional best-effort rerank pass.
package retrieval

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Retriever embeds queries, searches the vector store, and reranks when the
// candidate set exceeds the configured budget.
type Retriever struct {
	vectors  vectorstore.Store
	embedder llm.Embedder
	reranker llm.Reranker

	rerankTopN    int
	snippetLength int
	logger        *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger for the retriever.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithReranker enables the rerank pass. Without one, vector order is final.
func WithReranker(reranker llm.Reranker, topN int) Option {
	return func(r *Retriever) {
		r.reranker = reranker
		r.rerankTopN = topN
	}
}

// WithSnippetLength bounds hit snippets, in runes.
func WithSnippetLength(n int) Option {
	return func(r *Retriever) {
		r.snippetLength = n
	}
}

// NewRetriever creates a retriever over the given store and embedder.
func NewRetriever(vectors vectorstore.Store, embedder llm.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		vectors:       vectors,
		embedder:      embedder,
		snippetLength: 200,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search runs the multi-stage retrieval for req: embed the query, take the
// topK nearest chunks, rerank when the candidate count exceeds the budget.
// Rerank failures fall back to vector order and are only logged; they never
// fail the query.
func (r *Retriever) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, models.WrapError(models.CodeInvalidInput, err, "invalid search request")
	}
	start := time.Now()

	embedding, err := r.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := r.vectors.Query(ctx, req.CourseID, embedding, req.TopK, req.Filters)
	if err != nil {
		return nil, err
	}

	if r.reranker != nil && r.rerankTopN > 0 && len(hits) > r.rerankTopN {
		hits = r.rerank(ctx, req.Query, hits)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	for _, h := range hits {
		h.Snippet = utils.Truncate(h.Text, r.snippetLength)
	}

	return &models.SearchResponse{
		Hits:      hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
	}, nil
}

// rerank reorders hits by the rerank model's relevance and keeps the top
// budget. Scores stay the provider's relevance scores clamped to [0,1] so
// downstream confidence math keeps its range.
func (r *Retriever) rerank(ctx context.Context, query string, hits []*models.SearchHit) []*models.SearchHit {
	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Text
	}
	results, err := r.reranker.Rerank(ctx, query, docs, r.rerankTopN)
	if err != nil {
		r.logger.Warn("rerank failed, keeping vector order", zap.Error(err))
		return hits
	}
	if len(results) == 0 {
		return hits
	}
	reranked := make([]*models.SearchHit, 0, len(results))
	for _, res := range results {
		h := hits[res.Index]
		h.Score = clamp(res.Score)
		reranked = append(reranked, h)
	}
	return reranked
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
