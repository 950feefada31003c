package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/config"
	"github.com/dshills/agentic-search-mcp/internal/logger"
	"github.com/dshills/agentic-search-mcp/internal/mcp"
	"github.com/dshills/agentic-search-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// errCheckFailed is returned by check when a backend is unreachable
var errCheckFailed = errors.New("backend check failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}

	switch args[0] {
	case "--version", "version":
		printVersion(stdout)
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	case "serve":
		return runServe(ctx, args[1:], stdin, stdout)
	case "ingest":
		return runIngest(ctx, args[1:], stdin, stdout)
	case "check":
		return runCheck(ctx, args[1:], stdout)
	case "qdrant", "tidb", "search":
		// Mode names as commands: `agentic-search tidb` serves keyword search only.
		return runServe(ctx, append([]string{"--mode", args[0]}, args[1:]...), stdin, stdout)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// serveFlags are the command-line overrides for the config file
type serveFlags struct {
	configPath string
	transport  string
	addr       string
	mode       string
	logLevel   string
	prompt     string

	collection       string
	payloadField     string
	limit            int
	scoreThreshold   float64
	embeddingService string
	chatService      string
	tableName        string
	sslCA            string

	flagSet *pflag.FlagSet
}

func (f *serveFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	flagSet.StringVar(&f.transport, "transport", "", "MCP transport: stdio, sse or stream-http")
	flagSet.StringVar(&f.addr, "addr", "", "listen address for HTTP transports")
	flagSet.StringVar(&f.mode, "mode", "", "restrict to one search mode: qdrant, tidb or search")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&f.prompt, "search-tool-prompt", "", "description of the search tool and text of the search prompt")

	flagSet.StringVar(&f.collection, "qdrant-collection", "", "Qdrant collection to search")
	flagSet.StringVar(&f.payloadField, "qdrant-payload-field", "", "payload field holding the source text")
	flagSet.IntVar(&f.limit, "limit", 0, "maximum hits per backend")
	flagSet.Float64Var(&f.scoreThreshold, "score-threshold", 0, "minimum vector score, 0 keeps every hit")
	flagSet.StringVar(&f.embeddingService, "embedding-service", "", "base URL of the embedding service")
	flagSet.StringVar(&f.chatService, "chat-service", "", "base URL of the chat service used for keyword extraction")
	flagSet.StringVar(&f.tableName, "tidb-table-name", "", "full-text table to search")
	flagSet.StringVar(&f.sslCA, "tidb-ssl-ca", "", "CA bundle for TLS connections to the keyword store")
	f.flagSet = flagSet
}

// load reads the config file, applies the flag overrides, then defaults and validation
func (f *serveFlags) load() (config.Config, error) {
	cfg, err := config.Read(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.transport != "" {
		cfg.Server.Transport = f.transport
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.prompt != "" {
		cfg.Server.SearchToolPrompt = f.prompt
	}
	f.applyBackendOverrides(&cfg)
	if err := cfg.RestrictTo(f.mode); err != nil {
		return config.Config{}, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyBackendOverrides sets the search and backend flags on cfg. Naming a
// collection or a table creates the section when the file has none.
func (f *serveFlags) applyBackendOverrides(cfg *config.Config) {
	if f.collection != "" || f.payloadField != "" {
		if cfg.Vector == nil {
			cfg.Vector = &config.VectorConfig{}
		}
		if f.collection != "" {
			cfg.Vector.Collection = f.collection
		}
		if f.payloadField != "" {
			cfg.Vector.PayloadField = f.payloadField
		}
	}
	if f.tableName != "" || f.sslCA != "" {
		if cfg.Keyword == nil {
			cfg.Keyword = &config.KeywordConfig{}
		}
		if f.tableName != "" {
			cfg.Keyword.Table = f.tableName
		}
		if f.sslCA != "" {
			cfg.Keyword.SSLCA = f.sslCA
		}
	}
	if f.limit > 0 {
		cfg.Search.Limit = f.limit
	}
	if f.flagSet != nil && f.flagSet.Changed("score-threshold") {
		threshold := f.scoreThreshold
		cfg.Search.ScoreThreshold = &threshold
	}
	if f.embeddingService != "" {
		cfg.Embedding.BaseURL = f.embeddingService
	}
	if f.chatService != "" {
		cfg.Chat.BaseURL = f.chatService
	}
}

func runServe(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var flags serveFlags
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := flags.load()
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(config.GetEnv(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("agentic search mcp server starting",
		zap.String("version", version),
		zap.String("transport", cfg.Server.Transport),
		zap.String("sqlite_build", storage.BuildMode))

	server, err := mcp.Build(ctx, cfg, version, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()

	switch cfg.Server.Transport {
	case config.TransportStdio:
		err = server.ServeStdio(ctx, stdin, stdout)
	default:
		shutdown := time.Duration(cfg.Server.ShutdownSec) * time.Second
		err = server.ServeHTTP(ctx, cfg.Server.Transport, cfg.Server.Addr, shutdown)
	}
	if err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}

func runIngest(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var configPath, file string
	flagSet := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	flagSet.StringVarP(&file, "file", "f", "-", "JSONL file of {\"title\", \"content\"} documents, - for stdin")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if cfg.Keyword == nil {
		return errors.New("ingest requires a keyword section")
	}
	cfg.ApplyDefaults()

	log, err := logger.NewLogger(config.GetEnv(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var in io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	docs, err := storage.ReadDocuments(in)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, storage.Config{
		Driver:     cfg.Keyword.Driver,
		Connection: cfg.Keyword.Connection,
		Table:      cfg.Keyword.Table,
		SSLCA:      cfg.Keyword.SSLCA,
		Logger:     log.Named("keyword"),
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if store.Dialect() == config.DriverSQLite {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	n, err := store.Ingest(ctx, docs)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ingested %d documents into %s\n", n, store.Table())
	return nil
}

func runCheck(ctx context.Context, args []string, stdout io.Writer) error {
	var flags serveFlags
	flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
	flags.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := flags.load()
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(config.GetEnv(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	server, err := mcp.Build(ctx, cfg, version, log)
	if err != nil {
		return err
	}
	defer func() { _ = server.Close() }()

	statuses := server.Check(ctx)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(statuses); err != nil {
		return err
	}
	for _, st := range statuses {
		if !st.OK {
			return errCheckFailed
		}
	}
	return nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Agentic Search MCP Server\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
	fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  agentic-search serve  [--config file] [--transport stdio|sse|stream-http] [--addr host:port] [--mode qdrant|tidb|search]
  agentic-search ingest [--config file] [--file docs.jsonl]
  agentic-search check  [--config file]
  agentic-search --version

Backend overrides (serve and check):
  --qdrant-collection name   --qdrant-payload-field field   --embedding-service url
  --tidb-table-name name     --tidb-ssl-ca file             --chat-service url
  --limit n                  --score-threshold x

qdrant, tidb and search are accepted as commands: they serve with that mode.
`)
}
