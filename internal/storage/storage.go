package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/metrics"
	"github.com/dshills/agentic-search-mcp/pkg/types"
)

var (
	// ErrUnsupportedDriver is returned for an unknown keyword.driver
	ErrUnsupportedDriver = errors.New("unsupported keyword store driver")
	// ErrInvalidTable is returned when the table name is not a plain identifier
	ErrInvalidTable = errors.New("invalid table name")
	// ErrMigrateUnsupported is returned when schema management is requested outside sqlite
	ErrMigrateUnsupported = errors.New("schema migrations are only supported for sqlite")
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds keyword store settings
type Config struct {
	Driver     string // mysql, tidb, postgres, sqlite
	Connection string
	Table      string
	SSLCA      string // mysql/tidb only
	Limit      int
	Logger     *zap.Logger
}

// Store runs full-text searches against one table
type Store struct {
	db       *sql.DB
	dialect  dialect
	database string
	table    string
	limit    int
	logger   *zap.Logger
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open connects to the keyword store and verifies the connection.
// It does not create or check the table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if !identifierRegex.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, cfg.Table)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db       *sql.DB
		d        dialect
		database string
		err      error
	)
	switch strings.ToLower(cfg.Driver) {
	case "mysql", "tidb":
		db, database, err = openMySQL(cfg.Connection, cfg.SSLCA, strings.ToLower(cfg.Driver) == "tidb")
		d = mysqlDialect{}
	case "postgres", "postgresql", "pgx":
		db, database, err = openPostgres(cfg.Connection)
		d = postgresDialect{}
	case "sqlite", "sqlite3":
		db, err = openDatabase(cfg.Connection)
		database = "main"
		d = sqliteDialect{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", d.name(), err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", d.name(), err)
	}

	logger.Info("keyword store connected",
		zap.String("dialect", d.name()),
		zap.String("database", database),
		zap.String("table", cfg.Table))

	return &Store{
		db:       db,
		dialect:  d,
		database: database,
		table:    cfg.Table,
		limit:    cfg.Limit,
		logger:   logger,
	}, nil
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection keeps :memory: databases shared across callers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Close closes the database connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL dialect name
func (s *Store) Dialect() string {
	return s.dialect.name()
}

// Database returns the database name used in error messages
func (s *Store) Database() string {
	return s.database
}

// Table returns the searched table name
func (s *Store) Table() string {
	return s.table
}

// TableExists reports whether the searched table (and, for sqlite, its FTS index) exists
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	return s.dialect.tableExists(ctx, s.db, s.database, s.table)
}

// ServerVersion returns the database server version string
func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := s.db.QueryRowContext(ctx, s.dialect.versionQuery()).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query version: %w", err)
	}
	return version, nil
}

// Search returns rows whose content matches any of the space-separated
// keywords, best match first, at most Limit rows. An empty result is not an error.
func (s *Store) Search(ctx context.Context, keywords string) (hits []types.KeywordHit, err error) {
	start := time.Now()
	defer func() { metrics.ObserveBackend(types.BackendKeyword, start, err) }()

	exists, err := s.TableExists(ctx)
	if err != nil {
		return nil, types.NewUpstreamError(types.BackendKeyword, "check table", err)
	}
	if !exists {
		return nil, &types.BackendNotFoundError{Database: s.database, Table: s.table}
	}

	query, args, ok := s.dialect.searchQuery(s.table, keywords, s.limit)
	if !ok {
		s.logger.Warn("no usable keywords", zap.String("keywords", keywords))
		return []types.KeywordHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewUpstreamError(types.BackendKeyword, "full-text search", err)
	}
	defer func() { _ = rows.Close() }()

	hits = make([]types.KeywordHit, 0)
	for rows.Next() {
		var (
			hit   types.KeywordHit
			title sql.NullString
		)
		if err := rows.Scan(&hit.ID, &title, &hit.Content); err != nil {
			return nil, types.NewUpstreamError(types.BackendKeyword, "scan row", err)
		}
		hit.Title = title.String
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewUpstreamError(types.BackendKeyword, "read rows", err)
	}

	s.logger.Debug("keyword search finished",
		zap.String("table", s.table),
		zap.Int("hits", len(hits)),
		zap.Duration("duration", time.Since(start)))

	return hits, nil
}

// Migrate applies the local corpus schema (sqlite only)
func (s *Store) Migrate(ctx context.Context) error {
	if _, ok := s.dialect.(sqliteDialect); !ok {
		return fmt.Errorf("%w: driver %s", ErrMigrateUnsupported, s.dialect.name())
	}
	return ApplyMigrations(ctx, s.db, s.table)
}

// Ingest inserts documents into the table in one transaction and returns
// the number of rows written. The table must already exist.
func (s *Store) Ingest(ctx context.Context, docs []types.Document) (int, error) {
	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			return 0, fmt.Errorf("document %d: %w", i+1, err)
		}
	}

	exists, err := s.TableExists(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to check table: %w", err)
	}
	if !exists {
		return 0, &types.BackendNotFoundError{Database: s.database, Table: s.table}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	n, err := insertDocuments(ctx, tx, s.dialect.insertQuery(s.table), docs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("documents ingested", zap.String("table", s.table), zap.Int("count", n))
	return n, nil
}

func insertDocuments(ctx context.Context, q querier, query string, docs []types.Document) (int, error) {
	for i, doc := range docs {
		if _, err := q.ExecContext(ctx, query, doc.Title, doc.Content); err != nil {
			return 0, fmt.Errorf("failed to insert document %d: %w", i+1, err)
		}
	}
	return len(docs), nil
}

// splitKeywords splits extracted keywords on whitespace
func splitKeywords(keywords string) []string {
	return strings.Fields(keywords)
}
