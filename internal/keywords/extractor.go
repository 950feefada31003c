// Package keywords turns a natural-language query into a space-separated
// keyword string using an OpenAI-compatible chat completion service.
package keywords

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/metrics"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

// Errors returned inside the UpstreamError of a failed extraction
var (
	ErrNoChoices    = errors.New("chat response has no choices")
	ErrEmptyContent = errors.New("chat response content is empty")
)

// Config holds the chat service settings
type Config struct {
	BaseURL string // Service root; "/v1" is appended
	APIKey  string // Optional; no Authorization header when empty
	Model   string // Optional; the service default is used when empty
	Timeout time.Duration
	Logger  *zap.Logger
}

// Extractor asks a chat model for the keywords of a query
type Extractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor creates a chat-backed keyword extractor
func NewExtractor(cfg Config) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Extract returns the keywords of query as one space-separated string.
// The query is forwarded as-is, even when empty. Failures are reported as
// *types.UpstreamError and never retried.
func (e *Extractor) Extract(ctx context.Context, query string) (keywords string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveBackend(types.BackendChat, start, err) }()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(query)},
		},
	})
	if err != nil {
		return "", types.NewUpstreamError(types.BackendChat, "extract keywords", describeAPIError(err))
	}

	if len(resp.Choices) == 0 {
		return "", types.NewUpstreamError(types.BackendChat, "extract keywords", ErrNoChoices)
	}

	keywords = Sanitize(resp.Choices[0].Message.Content)
	if keywords == "" {
		return "", types.NewUpstreamError(types.BackendChat, "extract keywords", ErrEmptyContent)
	}

	e.logger.Debug("extracted keywords",
		zap.String("keywords", keywords),
		zap.Duration("duration", time.Since(start)))

	return keywords, nil
}

// Sanitize collapses whitespace and control characters in model output to
// single spaces and trims the ends.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return fmt.Errorf("status %d: %s", reqErr.HTTPStatusCode, body)
	}

	return err
}
