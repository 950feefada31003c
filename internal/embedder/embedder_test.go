package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingServer struct {
	calls      atomic.Int32
	lastInput  atomic.Value
	lastAuth   atomic.Value
	failFirst  int32
	statusCode int
	empty      bool
}

func (s *embeddingServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := s.calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		s.lastAuth.Store(r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if len(body.Input) == 1 {
			s.lastInput.Store(body.Input[0])
		}

		w.Header().Set("Content-Type", "application/json")
		if n <= s.failFirst {
			w.WriteHeader(s.statusCode)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		if s.empty {
			_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m"}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"m"}`))
	}
}

func newTestProvider(t *testing.T, srv *httptest.Server, cfg Config) *OpenAIProvider {
	t.Helper()
	cfg.BaseURL = srv.URL + "/"
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	p, err := NewOpenAIProvider(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name  string
		model string
		a, b  string
		equal bool
	}{
		{name: "same text", a: "hello world", b: "hello world", equal: true},
		{name: "different text", a: "hello", b: "world", equal: false},
		{name: "empty text is hashable", a: "", b: "", equal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeHash(tt.model, tt.a)
			assert.Len(t, got, 64)
			assert.Equal(t, tt.equal, got == ComputeHash(tt.model, tt.b))
		})
	}

	assert.NotEqual(t, ComputeHash("m1", "text"), ComputeHash("m2", "text"))
}

func TestCache(t *testing.T) {
	assert.Nil(t, NewCache(0), "non-positive size disables the cache")

	cache := NewCache(2)
	require.NotNil(t, cache)

	cache.Set("a", &Embedding{Vector: []float32{1, 2}, Dimension: 2})
	got, ok := cache.Get("a")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0], "cached vector must not be mutated through a copy")

	cache.Set("b", &Embedding{})
	cache.Set("c", &Embedding{})
	assert.Equal(t, 2, cache.Size())
	_, ok = cache.Get("a")
	assert.False(t, ok, "least recently used entry evicted")

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestOpenAIProvider_GenerateEmbedding(t *testing.T) {
	stub := &embeddingServer{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, Config{})

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "What's Gaianet?"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, "What's Gaianet?", stub.lastInput.Load())
	assert.Empty(t, stub.lastAuth.Load(), "no Authorization header without an API key")
	assert.EqualValues(t, 1, stub.calls.Load())
}

func TestOpenAIProvider_APIKeyAndEmptyQuery(t *testing.T) {
	stub := &embeddingServer{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, Config{APIKey: "secret"})

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: ""})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", stub.lastAuth.Load())
	assert.Equal(t, "", stub.lastInput.Load(), "empty query forwarded as-is")
}

func TestOpenAIProvider_Failures(t *testing.T) {
	tests := []struct {
		name string
		stub *embeddingServer
	}{
		{name: "non-2xx", stub: &embeddingServer{failFirst: 1, statusCode: http.StatusServiceUnavailable}},
		{name: "no embeddings", stub: &embeddingServer{empty: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.stub.handler(t))
			defer srv.Close()

			p := newTestProvider(t, srv, Config{})
			_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "q"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrProviderFailed))
			assert.EqualValues(t, 1, tt.stub.calls.Load(), "no retry by default")
		})
	}
}

func TestOpenAIProvider_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p, err := NewOpenAIProvider(Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "q"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestOpenAIProvider_Retry(t *testing.T) {
	stub := &embeddingServer{failFirst: 1, statusCode: http.StatusInternalServerError}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, Config{MaxAttempts: 2})

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 3, emb.Dimension)
	assert.EqualValues(t, 2, stub.calls.Load())
}

func TestOpenAIProvider_Cache(t *testing.T) {
	stub := &embeddingServer{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	p := newTestProvider(t, srv, Config{CacheSize: 8})

	for i := 0; i < 3; i++ {
		_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "same query"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, stub.calls.Load())

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "other query"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stub.calls.Load())
}

func TestNewOpenAIProvider_RequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIProvider(Config{})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestAPIBaseURL(t *testing.T) {
	assert.Equal(t, "http://host:8080/v1", APIBaseURL("http://host:8080"))
	assert.Equal(t, "http://host:8080/v1", APIBaseURL("http://host:8080/"))
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retryWithBackoff(ctx, DefaultRetryConfig(5), func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
