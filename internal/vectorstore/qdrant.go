// Package vectorstore queries a Qdrant collection over its REST API.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/metrics"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

const maxErrorBody = 512

// ErrNoResult is returned when a 2xx response carries no "result" field.
var ErrNoResult = errors.New("response has no result")

// Config holds the Qdrant connection and query settings
type Config struct {
	BaseURL        string
	APIKey         string // Sent as the api-key header when set
	Collection     string
	Limit          int
	ScoreThreshold float64
	Timeout        time.Duration
	Logger         *zap.Logger
}

// Client runs similarity searches against one collection
type Client struct {
	baseURL        string
	apiKey         string
	collection     string
	limit          int
	scoreThreshold float64
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient creates a Qdrant REST client
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		collection:     cfg.Collection,
		limit:          cfg.Limit,
		scoreThreshold: cfg.ScoreThreshold,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		logger:         logger,
	}
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	WithVector     bool      `json:"with_vector"`
	ScoreThreshold float64   `json:"score_threshold"`
}

type scoredPoint struct {
	ID      json.RawMessage            `json:"id"`
	Score   float64                    `json:"score"`
	Payload map[string]json.RawMessage `json:"payload"`
	Vector  json.RawMessage            `json:"vector"`
}

type responseStatus struct {
	Error string `json:"error"`
}

// UnmarshalJSON accepts both "ok" and {"error": "..."}.
func (s *responseStatus) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		return nil
	}
	type alias responseStatus
	return json.Unmarshal(data, (*alias)(s))
}

type searchResponse struct {
	Result *[]scoredPoint  `json:"result"`
	Status *responseStatus `json:"status"`
	Time   float64         `json:"time"`
}

// Search returns the points closest to vector, at most Limit of them and
// none scoring below ScoreThreshold. An empty result is not an error.
func (c *Client) Search(ctx context.Context, vector []float32) (hits []types.VectorHit, err error) {
	start := time.Now()
	defer func() { metrics.ObserveBackend(types.BackendVector, start, err) }()

	body, err := json.Marshal(searchRequest{
		Vector:         vector,
		Limit:          c.limit,
		WithPayload:    true,
		WithVector:     true,
		ScoreThreshold: c.scoreThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, url.PathEscape(c.collection))
	data, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, types.NewUpstreamError(types.BackendVector, "search points", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, types.NewUpstreamError(types.BackendVector, "decode search response", err)
	}
	if resp.Result == nil {
		if resp.Status != nil && resp.Status.Error != "" {
			return nil, types.NewUpstreamError(types.BackendVector, "search points", fmt.Errorf("%w: %s", ErrNoResult, resp.Status.Error))
		}
		return nil, types.NewUpstreamError(types.BackendVector, "search points", ErrNoResult)
	}

	hits = make([]types.VectorHit, 0, len(*resp.Result))
	for _, p := range *resp.Result {
		hit := types.VectorHit{ID: p.ID, Score: p.Score, Payload: p.Payload}
		hit.Vector = decodeVector(p.Vector)
		hits = append(hits, hit)
	}

	c.logger.Debug("qdrant search finished",
		zap.String("collection", c.collection),
		zap.Int("hits", len(hits)),
		zap.Float64("server_time", resp.Time))

	return hits, nil
}

// CollectionExists reports whether the configured collection is present.
func (c *Client) CollectionExists(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(c.collection))
	_, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err == nil {
		return true, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, types.NewUpstreamError(types.BackendVector, "get collection", err)
}

// StatusError is a non-2xx response from Qdrant
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: errorDetail(data)}
	}
	return data, nil
}

// errorDetail prefers status.error from a Qdrant error body over the raw text.
func errorDetail(body []byte) string {
	var parsed searchResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Status != nil && parsed.Status.Error != "" {
		return parsed.Status.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// decodeVector keeps unnamed dense vectors; named or sparse vectors are dropped.
func decodeVector(raw json.RawMessage) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
