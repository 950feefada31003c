package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/config"
	"github.com/dshills/agentic-search-mcp/internal/embedder"
	"github.com/dshills/agentic-search-mcp/internal/keywords"
	"github.com/dshills/agentic-search-mcp/internal/logger"
	"github.com/dshills/agentic-search-mcp/internal/searcher"
	"github.com/dshills/agentic-search-mcp/internal/storage"
	"github.com/dshills/agentic-search-mcp/internal/vectorstore"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "agentic-search-mcp"
	// ServerVersion is the default server version
	ServerVersion = "1.0.0"
	// ServerInstructions is sent to clients during initialization
	ServerInstructions = "Agentic search MCP server"
)

// Searcher runs a query against the configured backends
type Searcher interface {
	Search(ctx context.Context, query string) (*searcher.SearchResponse, error)
	Mode() searcher.Mode
}

// Options configures a Server
type Options struct {
	Searcher   Searcher
	ToolPrompt string
	Version    string
	Logger     *zap.Logger

	// Closers are released by Close in reverse order.
	Closers []io.Closer
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	searcher   Searcher
	toolPrompt string
	logger     *zap.Logger
	closers    []io.Closer

	vector *vectorstore.Client
	store  *storage.Store
}

// NewServer creates a new MCP server instance exposing the search tool
// and the search prompt. It fails when no backend is configured.
func NewServer(opts Options) (*Server, error) {
	if opts.Searcher == nil || opts.Searcher.Mode() == searcher.ModeUnconfigured {
		return nil, types.ErrUnconfigured
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	prompt := opts.ToolPrompt
	if prompt == "" {
		prompt = config.DefaultSearchToolPrompt
	}
	version := opts.Version
	if version == "" {
		version = ServerVersion
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(ServerInstructions),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:        mcpServer,
		searcher:   opts.Searcher,
		toolPrompt: prompt,
		logger:     log,
		closers:    opts.Closers,
	}
	s.registerTools()
	s.registerPrompts()

	log.Info("mcp server ready",
		zap.String("mode", opts.Searcher.Mode().String()),
		zap.String("version", version))
	return s, nil
}

// Build wires the backends named in cfg into a Server. Sections missing
// from cfg leave their leg disabled.
func Build(ctx context.Context, cfg config.Config, version string, log *zap.Logger) (s *Server, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers, log)
		}
	}()

	opts := searcher.Options{
		Timeout:                 cfg.Search.Timeout(),
		DegradeOnPartialFailure: cfg.Search.DegradeOnPartialFailure,
		Logger:                  log.Named("searcher"),
	}

	var vector *vectorstore.Client
	if v := cfg.Vector; v != nil {
		emb, err := embedder.NewOpenAIProvider(embedder.Config{
			BaseURL:     cfg.Embedding.BaseURL,
			APIKey:      cfg.Embedding.APIKey,
			Model:       cfg.Embedding.Model,
			Timeout:     cfg.Embedding.Timeout(),
			MaxAttempts: cfg.Embedding.MaxAttempts,
			CacheSize:   cfg.Embedding.CacheSize,
			Logger:      log.Named("embedder"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		closers = append(closers, emb)

		vector = vectorstore.NewClient(vectorstore.Config{
			BaseURL:        v.BaseURL,
			APIKey:         v.APIKey,
			Collection:     v.Collection,
			Limit:          cfg.Search.Limit,
			ScoreThreshold: cfg.Search.Threshold(),
			Timeout:        cfg.Search.Timeout(),
			Logger:         log.Named("qdrant"),
		})
		opts.Embedder = emb
		opts.Vector = vector
		opts.PayloadField = v.PayloadField
	}

	var store *storage.Store
	if k := cfg.Keyword; k != nil {
		store, err = storage.Open(ctx, storage.Config{
			Driver:     k.Driver,
			Connection: k.Connection,
			Table:      k.Table,
			SSLCA:      k.SSLCA,
			Limit:      cfg.Search.Limit,
			Logger:     log.Named("keyword"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open keyword store: %w", err)
		}
		closers = append(closers, store)

		opts.Extractor = keywords.NewExtractor(keywords.Config{
			BaseURL: cfg.Chat.BaseURL,
			APIKey:  cfg.Chat.APIKey,
			Model:   cfg.Chat.Model,
			Timeout: cfg.Chat.Timeout(),
			Logger:  log.Named("keywords"),
		})
		opts.Keywords = store
	}

	s, err = NewServer(Options{
		Searcher:   searcher.New(opts),
		ToolPrompt: cfg.Server.SearchToolPrompt,
		Version:    version,
		Logger:     log,
		Closers:    closers,
	})
	if err != nil {
		return nil, err
	}
	s.vector = vector
	s.store = store
	return s, nil
}

// Mode returns the resolved search mode
func (s *Server) Mode() searcher.Mode {
	return s.searcher.Mode()
}

// MCPServer exposes the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves the protocol over in and out until ctx is done or
// the input stream closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))
	ctx = logger.ContextWithLogger(ctx, s.logger.With(zap.String("transport", config.TransportStdio)))

	s.logger.Info("serving mcp over stdio")
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the backend connections
func (s *Server) Close() error {
	return closeAll(s.closers, s.logger)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(s.toolPrompt), s.handleSearch)
}

// registerPrompts registers all MCP prompts
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(searchPrompt(), s.handleSearchPrompt)
}

func closeAll(closers []io.Closer, log *zap.Logger) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("failed to close backend", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
