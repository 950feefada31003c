package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/metrics"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

// Config holds the embedding service settings
type Config struct {
	BaseURL     string // Service root; "/v1" is appended
	APIKey      string // Optional; no Authorization header when empty
	Model       string // Optional; the service default is used when empty
	Timeout     time.Duration
	MaxAttempts int
	CacheSize   int
	Logger      *zap.Logger
}

// OpenAIProvider implements Embedder against an OpenAI-compatible /v1/embeddings endpoint
type OpenAIProvider struct {
	client *openai.Client
	model  string
	retry  RetryConfig
	cache  *Cache
	logger *zap.Logger
}

// NewOpenAIProvider creates an embedder for an OpenAI-compatible service
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrProviderFailed)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = APIBaseURL(cfg.BaseURL)
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		retry:  DefaultRetryConfig(cfg.MaxAttempts),
		cache:  NewCache(cfg.CacheSize),
		logger: logger,
	}, nil
}

// APIBaseURL turns a service root into the go-openai base URL
func APIBaseURL(base string) string {
	return strings.TrimRight(base, "/") + "/v1"
}

// GenerateEmbedding embeds req.Text. The text is sent as-is, empty or not.
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	hash := ComputeHash(model, req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return emb, nil
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	vector, err := retryWithBackoff(ctx, p.retry, func() ([]float32, error) {
		return p.callAPI(ctx, req.Text, model)
	})
	metrics.ObserveBackend(types.BackendEmbedding, start, err)
	if err != nil {
		return nil, err
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Model:     model,
		Hash:      hash,
	}
	if p.cache != nil {
		p.cache.Set(hash, emb)
	}

	p.logger.Debug("generated query embedding",
		zap.Int("dimension", emb.Dimension),
		zap.Duration("duration", time.Since(start)))

	return emb, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, text, model string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, ErrNoEmbedding)
	}

	return resp.Data[0].Embedding, nil
}

// Model returns the configured model name
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Close releases resources
func (p *OpenAIProvider) Close() error {
	if p.cache != nil {
		p.cache.Clear()
	}
	return nil
}

// parseAPIError keeps the HTTP status and error message of a failed call.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", ErrProviderFailed, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: status %d: %s", ErrProviderFailed, reqErr.HTTPStatusCode, truncateBody(reqErr.Body))
	}

	return fmt.Errorf("%w: %w", ErrProviderFailed, err)
}

func truncateBody(body []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
