package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// maxEmbedBatch bounds one embedding request regardless of configuration;
// the provider rejects larger batches.
const maxEmbedBatch = 16

// Client talks to an OpenAI-compatible provider for embeddings and chat
// completions, and to the provider's /rerank endpoint for reranking.
// It implements Embedder, Generator, and Reranker.
type Client struct {
	cfg      config.LLMConfig
	llm      *openai.LLM
	embedder *embeddings.EmbedderImpl
	http     *http.Client
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a provider client from cfg.
func NewClient(cfg config.LLMConfig, opts ...ClientOption) (*Client, error) {
	llmClient, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, models.WrapError(models.CodeGeneration, err, "initialize provider client")
	}

	batch := cfg.EmbedBatchSize
	if batch <= 0 || batch > maxEmbedBatch {
		batch = maxEmbedBatch
	}
	embedder, err := embeddings.NewEmbedder(llmClient, embeddings.WithBatchSize(batch))
	if err != nil {
		return nil, models.WrapError(models.CodeEmbeddingFailed, err, "initialize embedder")
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:      cfg,
		llm:      llmClient,
		embedder: embedder,
		http:     &http.Client{Timeout: timeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EmbedQuery embeds one text, truncated to the provider's character budget.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	emb, err := c.embedder.EmbedQuery(ctx, truncateRunes(text, c.cfg.EmbedMaxChars))
	if err != nil {
		return nil, models.WrapError(models.CodeEmbeddingFailed, err, "embed query")
	}
	return emb, nil
}

// EmbedBatch embeds texts in provider-bounded batches. Each text is truncated
// to the character budget first. A failed batch fails the whole call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncateRunes(t, c.cfg.EmbedMaxChars)
	}
	embs, err := c.embedder.EmbedDocuments(ctx, truncated)
	if err != nil {
		return nil, models.WrapError(models.CodeEmbeddingFailed, err, "embed %d texts", len(texts))
	}
	return embs, nil
}

// Generate produces a whole chat completion.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, chatMessages(system, prompt),
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithMaxTokens(c.cfg.MaxTokens),
	)
	if err != nil {
		return "", models.WrapError(models.CodeGeneration, err, "generate answer")
	}
	if len(resp.Choices) == 0 {
		return "", models.NewError(models.CodeGeneration, "provider returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// GenerateStream produces a chat completion incrementally. onDelta receives
// each text delta in order; its error aborts the stream. The accumulated
// full answer is returned for post-processing.
func (c *Client) GenerateStream(ctx context.Context, system, prompt string, onDelta func(text string) error) (string, error) {
	var full strings.Builder
	_, err := c.llm.GenerateContent(ctx, chatMessages(system, prompt),
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithMaxTokens(c.cfg.MaxTokens),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			full.Write(chunk)
			return onDelta(string(chunk))
		}),
	)
	if err != nil {
		return full.String(), models.WrapError(models.CodeGeneration, err, "generate answer stream")
	}
	return full.String(), nil
}

func chatMessages(system, prompt string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
}

// truncateRunes bounds text to maxChars runes. Zero or negative maxChars
// means no limit.
func truncateRunes(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
