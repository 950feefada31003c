package searcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/agentic-search-mcp/internal/embedder"
	"github.com/dshills/agentic-search-mcp/internal/logger"
	"github.com/dshills/agentic-search-mcp/internal/metrics"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

// VectorIndex finds the hits nearest to a query embedding
type VectorIndex interface {
	Search(ctx context.Context, vector []float32) ([]types.VectorHit, error)
}

// KeywordExtractor turns a query into space-separated keywords
type KeywordExtractor interface {
	Extract(ctx context.Context, query string) (string, error)
}

// KeywordIndex runs a full-text search for keywords
type KeywordIndex interface {
	Search(ctx context.Context, keywords string) ([]types.KeywordHit, error)
}

// Options wires the backends into a Searcher.
// The vector leg is enabled when Embedder and Vector are both set, the
// keyword leg when Extractor and Keywords are both set.
type Options struct {
	Embedder     embedder.Embedder
	Vector       VectorIndex
	PayloadField string

	Extractor KeywordExtractor
	Keywords  KeywordIndex

	// Timeout bounds one search on top of the caller's context. Zero disables it.
	Timeout time.Duration

	// DegradeOnPartialFailure returns the surviving leg's results, with a
	// warning, when only one leg fails in combined mode.
	DegradeOnPartialFailure bool

	Logger *zap.Logger
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results        []string
	Mode           Mode
	VectorResults  int
	KeywordResults int
	Warnings       []string
	Duration       time.Duration
}

// Searcher runs one query against the configured backends. It holds no
// mutable state and is safe for concurrent use.
type Searcher struct {
	opts   Options
	mode   Mode
	logger *zap.Logger
}

// New creates a Searcher. An unconfigured Searcher is valid but every
// Search call fails with types.ErrUnconfigured.
func New(opts Options) *Searcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	vectorPresent := opts.Embedder != nil && opts.Vector != nil
	keywordPresent := opts.Extractor != nil && opts.Keywords != nil
	return &Searcher{
		opts:   opts,
		mode:   ResolveMode(vectorPresent, keywordPresent),
		logger: log,
	}
}

// Mode returns the resolved search mode
func (s *Searcher) Mode() Mode {
	return s.mode
}

// Search runs query through the legs of the resolved mode and returns the
// source texts. The query is forwarded unchanged, empty or not.
func (s *Searcher) Search(ctx context.Context, query string) (resp *SearchResponse, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SearchRequestsTotal.WithLabelValues(s.mode.String(), status).Inc()
		if resp != nil {
			metrics.SearchResults.WithLabelValues(s.mode.String()).Observe(float64(len(resp.Results)))
		}
	}()

	if s.mode == ModeUnconfigured {
		return nil, types.ErrUnconfigured
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	log := s.requestLogger(ctx)
	log.Info("search started", zap.String("mode", s.mode.String()))

	resp = &SearchResponse{Mode: s.mode}
	switch s.mode {
	case ModeVector:
		texts, err := s.vectorLeg(ctx, query, log)
		if err != nil {
			return nil, err
		}
		resp.Results = texts
		resp.VectorResults = len(texts)
	case ModeKeyword:
		texts, err := s.keywordLeg(ctx, query, log)
		if err != nil {
			return nil, err
		}
		resp.Results = texts
		resp.KeywordResults = len(texts)
	case ModeCombined:
		if err := s.combined(ctx, query, log, resp); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", s.mode)
	}

	if resp.Results == nil {
		resp.Results = []string{}
	}
	resp.Duration = time.Since(start)

	log.Info("search done",
		zap.Int("results", len(resp.Results)),
		zap.Duration("duration", resp.Duration))
	log.Debug("search results", zap.Strings("results", resp.Results))

	return resp, nil
}

// combined runs both legs concurrently and merges their texts.
func (s *Searcher) combined(ctx context.Context, query string, log *zap.Logger, resp *SearchResponse) error {
	var vectorTexts, keywordTexts []string
	var vectorErr, keywordErr error

	if s.opts.DegradeOnPartialFailure {
		// Legs must not cancel each other, so errors are collected instead of returned.
		var g errgroup.Group
		g.Go(func() error {
			vectorTexts, vectorErr = s.vectorLeg(ctx, query, log)
			return nil
		})
		g.Go(func() error {
			keywordTexts, keywordErr = s.keywordLeg(ctx, query, log)
			return nil
		})
		_ = g.Wait()

		switch {
		case vectorErr != nil && keywordErr != nil:
			return errors.Join(vectorErr, keywordErr)
		case vectorErr != nil:
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("vector search failed, showing keyword results only: %v", vectorErr))
			log.Warn("vector leg failed, degrading to keyword results", zap.Error(vectorErr))
		case keywordErr != nil:
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("keyword search failed, showing vector results only: %v", keywordErr))
			log.Warn("keyword leg failed, degrading to vector results", zap.Error(keywordErr))
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			vectorTexts, err = s.vectorLeg(gctx, query, log)
			return err
		})
		g.Go(func() error {
			var err error
			keywordTexts, err = s.keywordLeg(gctx, query, log)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}
	}

	log.Info("combining vector and keyword results",
		zap.Int("vector", len(vectorTexts)),
		zap.Int("keyword", len(keywordTexts)))

	resp.Results = Merge(vectorTexts, keywordTexts)
	resp.VectorResults = len(vectorTexts)
	resp.KeywordResults = len(keywordTexts)
	return nil
}

// vectorLeg embeds the query, searches the vector index and extracts the payload field.
func (s *Searcher) vectorLeg(ctx context.Context, query string, log *zap.Logger) ([]string, error) {
	log.Info("computing query embedding")
	emb, err := s.opts.Embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, wrapUpstream(types.BackendEmbedding, "embed query", err)
	}

	log.Info("searching vector index")
	hits, err := s.opts.Vector.Search(ctx, emb.Vector)
	if err != nil {
		return nil, wrapUpstream(types.BackendVector, "search points", err)
	}

	if len(hits) == 0 {
		log.Warn("no vector search results")
		return []string{}, nil
	}

	texts, err := types.SourceTexts(hits, s.opts.PayloadField)
	if err != nil {
		log.Error("vector hit payload unusable", zap.Error(err))
		return nil, err
	}
	return texts, nil
}

// keywordLeg extracts keywords from the query and runs the full-text search.
func (s *Searcher) keywordLeg(ctx context.Context, query string, log *zap.Logger) ([]string, error) {
	log.Info("extracting keywords")
	keywords, err := s.opts.Extractor.Extract(ctx, query)
	if err != nil {
		return nil, wrapUpstream(types.BackendChat, "extract keywords", err)
	}
	log.Debug("extracted keywords", zap.String("keywords", keywords))

	log.Info("searching keyword store")
	hits, err := s.opts.Keywords.Search(ctx, keywords)
	if err != nil {
		var notFound *types.BackendNotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		return nil, wrapUpstream(types.BackendKeyword, "full-text search", err)
	}

	if len(hits) == 0 {
		log.Warn("no keyword search results")
		return []string{}, nil
	}

	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		texts = append(texts, hit.SourceText())
	}
	return texts, nil
}

// wrapUpstream leaves typed backend errors alone and wraps anything else.
func wrapUpstream(backend, op string, err error) error {
	if types.IsBackendFailure(err) {
		return err
	}
	return types.NewUpstreamError(backend, op, err)
}

// requestLogger prefers a logger attached to the request context; the
// context fallback is a no-op logger, which has every level disabled.
func (s *Searcher) requestLogger(ctx context.Context) *zap.Logger {
	if l := logger.FromContext(ctx); l.Core().Enabled(zap.FatalLevel) {
		return l
	}
	return s.logger
}
