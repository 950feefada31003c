package searcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/agentic-search-mcp/internal/embedder"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	calls        atomic.Int32
	mu           sync.Mutex
	lastText     string
	generateFunc func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastText = req.Text
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &embedder.Embedding{Vector: []float32{0.1, 0.2, 0.3}, Dimension: 3, Model: "mock-model"}, nil
}

func (m *mockEmbedder) Model() string { return "mock-model" }
func (m *mockEmbedder) Close() error  { return nil }

type mockVector struct {
	calls atomic.Int32
	hits  []types.VectorHit
	err   error
	block bool
}

func (m *mockVector) Search(ctx context.Context, _ []float32) ([]types.VectorHit, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.hits, m.err
}

type mockExtractor struct {
	calls       atomic.Int32
	mu          sync.Mutex
	lastQuery   string
	keywords    string
	err         error
	extractFunc func(ctx context.Context, query string) (string, error)
}

func (m *mockExtractor) Extract(ctx context.Context, query string) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastQuery = query
	m.mu.Unlock()
	if m.extractFunc != nil {
		return m.extractFunc(ctx, query)
	}
	return m.keywords, m.err
}

type mockKeywords struct {
	calls        atomic.Int32
	mu           sync.Mutex
	lastKeywords string
	hits         []types.KeywordHit
	err          error
	block        bool
}

func (m *mockKeywords) Search(ctx context.Context, keywords string) ([]types.KeywordHit, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastKeywords = keywords
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.hits, m.err
}

func vectorHits(texts ...string) []types.VectorHit {
	hits := make([]types.VectorHit, 0, len(texts))
	for i, text := range texts {
		raw, _ := json.Marshal(text)
		hits = append(hits, types.VectorHit{
			ID:      json.RawMessage(`1`),
			Score:   0.9 - float64(i)*0.1,
			Payload: map[string]json.RawMessage{"text": raw},
		})
	}
	return hits
}

func keywordHits(texts ...string) []types.KeywordHit {
	hits := make([]types.KeywordHit, 0, len(texts))
	for i, text := range texts {
		hits = append(hits, types.KeywordHit{ID: int64(i + 1), Title: "t", Content: text})
	}
	return hits
}

type fixture struct {
	emb *mockEmbedder
	vec *mockVector
	ext *mockExtractor
	kw  *mockKeywords
}

func newFixture() *fixture {
	return &fixture{
		emb: &mockEmbedder{},
		vec: &mockVector{},
		ext: &mockExtractor{keywords: "Gaianet"},
		kw:  &mockKeywords{},
	}
}

func (f *fixture) searcher(mode Mode, degrade bool) *Searcher {
	opts := Options{PayloadField: "text", DegradeOnPartialFailure: degrade, Timeout: 5 * time.Second}
	if mode == ModeVector || mode == ModeCombined {
		opts.Embedder = f.emb
		opts.Vector = f.vec
	}
	if mode == ModeKeyword || mode == ModeCombined {
		opts.Extractor = f.ext
		opts.Keywords = f.kw
	}
	return New(opts)
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		vector, keyword bool
		want            Mode
	}{
		{true, true, ModeCombined},
		{true, false, ModeVector},
		{false, true, ModeKeyword},
		{false, false, ModeUnconfigured},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveMode(tt.vector, tt.keyword))
	}
}

func TestNew_PartialWiringIsUnconfigured(t *testing.T) {
	s := New(Options{Embedder: &mockEmbedder{}, Extractor: &mockExtractor{}})
	assert.Equal(t, ModeUnconfigured, s.Mode())
}

func TestSearch_Unconfigured(t *testing.T) {
	f := newFixture()
	s := f.searcher(ModeUnconfigured, false)

	_, err := s.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, types.ErrUnconfigured)
	assert.Zero(t, f.emb.calls.Load()+f.vec.calls.Load()+f.ext.calls.Load()+f.kw.calls.Load(), "no backend call")
}

func TestSearch_VectorOnly(t *testing.T) {
	f := newFixture()
	f.vec.hits = vectorHits("Gaianet is a network.", "Nodes run models.")
	s := f.searcher(ModeVector, false)

	resp, err := s.Search(context.Background(), "What's Gaianet?")
	require.NoError(t, err)

	assert.Equal(t, ModeVector, resp.Mode)
	assert.Equal(t, []string{"Gaianet is a network.", "Nodes run models."}, resp.Results)
	assert.Equal(t, 2, resp.VectorResults)
	assert.EqualValues(t, 1, f.emb.calls.Load(), "exactly one embedding call")
	assert.EqualValues(t, 1, f.vec.calls.Load(), "exactly one vector call")
	assert.Zero(t, f.ext.calls.Load())
	assert.Zero(t, f.kw.calls.Load())
	assert.Equal(t, "What's Gaianet?", f.emb.lastText)
}

func TestSearch_KeywordOnly(t *testing.T) {
	f := newFixture()
	f.kw.hits = keywordHits("Gaianet is a decentralized network.", "Run a Gaianet node.")
	s := f.searcher(ModeKeyword, false)

	resp, err := s.Search(context.Background(), "What's Gaianet?")
	require.NoError(t, err)

	assert.Equal(t, ModeKeyword, resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results, "Gaianet is a decentralized network.")
	assert.EqualValues(t, 1, f.ext.calls.Load(), "exactly one extraction call")
	assert.EqualValues(t, 1, f.kw.calls.Load(), "exactly one keyword call")
	assert.Zero(t, f.emb.calls.Load())
	assert.Zero(t, f.vec.calls.Load())
	assert.Equal(t, "What's Gaianet?", f.ext.lastQuery)
	assert.Equal(t, "Gaianet", f.kw.lastKeywords)
}

func TestSearch_EmptyQueryForwarded(t *testing.T) {
	f := newFixture()
	s := f.searcher(ModeCombined, false)

	resp, err := s.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "   ", f.emb.lastText)
	assert.Equal(t, "   ", f.ext.lastQuery)
}

func TestSearch_Combined(t *testing.T) {
	tests := []struct {
		name    string
		vector  []string
		keyword []string
		want    []string
	}{
		{name: "dedup union", vector: []string{"a", "b"}, keyword: []string{"b", "c"}, want: []string{"a", "b", "c"}},
		{name: "keyword empty", vector: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "vector empty", keyword: []string{"c"}, want: []string{"c"}},
		{name: "both empty", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.vec.hits = vectorHits(tt.vector...)
			f.kw.hits = keywordHits(tt.keyword...)

			resp, err := f.searcher(ModeCombined, false).Search(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, ModeCombined, resp.Mode)
			assert.Equal(t, tt.want, resp.Results)
			assert.Equal(t, len(tt.vector), resp.VectorResults)
			assert.Equal(t, len(tt.keyword), resp.KeywordResults)
			assert.Empty(t, resp.Warnings)
			assert.EqualValues(t, 1, f.emb.calls.Load())
			assert.EqualValues(t, 1, f.kw.calls.Load())
		})
	}
}

func TestSearch_MissingPayloadField(t *testing.T) {
	f := newFixture()
	f.vec.hits = []types.VectorHit{
		{Payload: map[string]json.RawMessage{"text": json.RawMessage(`"ok"`)}},
		{Payload: map[string]json.RawMessage{"body": json.RawMessage(`"wrong field"`)}},
	}

	_, err := f.searcher(ModeVector, false).Search(context.Background(), "q")
	var fieldErr *types.PayloadFieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "text", fieldErr.Field)
}

func TestSearch_KeywordTableMissing(t *testing.T) {
	f := newFixture()
	f.kw.err = &types.BackendNotFoundError{Database: "gaia", Table: "documents"}

	_, err := f.searcher(ModeKeyword, false).Search(context.Background(), "q")
	var notFound *types.BackendNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, err.Error(), "documents")
}

func TestSearch_UpstreamErrors(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name        string
		mode        Mode
		setup       func(f *fixture)
		wantBackend string
	}{
		{
			name: "embedding",
			mode: ModeVector,
			setup: func(f *fixture) {
				f.emb.generateFunc = func(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
					return nil, boom
				}
			},
			wantBackend: types.BackendEmbedding,
		},
		{name: "vector index", mode: ModeVector, setup: func(f *fixture) { f.vec.err = boom }, wantBackend: types.BackendVector},
		{name: "extractor", mode: ModeKeyword, setup: func(f *fixture) { f.ext.err = boom }, wantBackend: types.BackendChat},
		{name: "keyword store", mode: ModeKeyword, setup: func(f *fixture) { f.kw.err = boom }, wantBackend: types.BackendKeyword},
		{
			name:        "typed error kept",
			mode:        ModeVector,
			setup:       func(f *fixture) { f.vec.err = types.NewUpstreamError(types.BackendVector, "search points", boom) },
			wantBackend: types.BackendVector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			_, err := f.searcher(tt.mode, false).Search(context.Background(), "q")
			var upstream *types.UpstreamError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, tt.wantBackend, upstream.Backend)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestSearch_CombinedPartialFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.vec.err = errors.New("qdrant down")
	f.kw.block = true // cancelled when the vector leg fails

	_, err := f.searcher(ModeCombined, false).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant down")
}

func TestSearch_CombinedDegrade(t *testing.T) {
	t.Run("vector fails", func(t *testing.T) {
		f := newFixture()
		f.vec.err = errors.New("qdrant down")
		f.kw.hits = keywordHits("k1")

		resp, err := f.searcher(ModeCombined, true).Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []string{"k1"}, resp.Results)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "qdrant down")
	})

	t.Run("keyword fails", func(t *testing.T) {
		f := newFixture()
		f.vec.hits = vectorHits("v1")
		f.kw.err = &types.BackendNotFoundError{Table: "documents"}

		resp, err := f.searcher(ModeCombined, true).Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, resp.Results)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "documents")
	})

	t.Run("both fail", func(t *testing.T) {
		f := newFixture()
		f.vec.err = errors.New("qdrant down")
		f.ext.err = errors.New("llm down")

		_, err := f.searcher(ModeCombined, true).Search(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "qdrant down")
		assert.Contains(t, err.Error(), "llm down")
	})
}

func TestSearch_CombinedLegsOverlap(t *testing.T) {
	f := newFixture()
	f.vec.hits = vectorHits("from vector")
	f.kw.hits = keywordHits("from keyword")

	vectorStarted := make(chan struct{})
	keywordStarted := make(chan struct{})

	// Each leg blocks until the other has started; run one after the other
	// they would time out instead.
	waitFor := func(ctx context.Context, other <-chan struct{}) error {
		select {
		case <-other:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("other leg never started")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.emb.generateFunc = func(ctx context.Context, _ embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		close(vectorStarted)
		if err := waitFor(ctx, keywordStarted); err != nil {
			return nil, err
		}
		return &embedder.Embedding{Vector: []float32{1}, Dimension: 1}, nil
	}
	f.ext.extractFunc = func(ctx context.Context, _ string) (string, error) {
		close(keywordStarted)
		if err := waitFor(ctx, vectorStarted); err != nil {
			return "", err
		}
		return "Gaianet", nil
	}

	resp, err := f.searcher(ModeCombined, false).Search(context.Background(), "What's Gaianet?")
	require.NoError(t, err)
	assert.Equal(t, []string{"from vector", "from keyword"}, resp.Results)
	assert.EqualValues(t, 1, f.emb.calls.Load())
	assert.EqualValues(t, 1, f.ext.calls.Load())
}

func TestSearch_Timeout(t *testing.T) {
	f := newFixture()
	f.vec.block = true

	s := New(Options{
		Embedder:     f.emb,
		Vector:       f.vec,
		PayloadField: "text",
		Timeout:      20 * time.Millisecond,
	})

	start := time.Now()
	_, err := s.Search(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSearch_CallerCancel(t *testing.T) {
	f := newFixture()
	f.vec.block = true
	f.kw.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := f.searcher(ModeCombined, false).Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_Concurrent(t *testing.T) {
	f := newFixture()
	f.vec.hits = vectorHits("a", "b")
	f.kw.hits = keywordHits("b", "c")
	s := f.searcher(ModeCombined, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.Search(context.Background(), "q")
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, resp.Results)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 20, f.emb.calls.Load())
}
