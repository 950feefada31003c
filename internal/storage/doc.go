// Package storage provides the full-text keyword store.
//
// A Store runs keyword searches against one table with at least the columns
// id, title and content. Three SQL dialects are supported:
//   - mysql / tidb: fts_match_word over the content column (TiDB full-text)
//   - postgres: to_tsvector / websearch_to_tsquery with the 'simple' config
//   - sqlite: an FTS5 external-content index named {table}_fts
//
// Every search first checks that the table exists and reports a missing
// table as *types.BackendNotFoundError. Keywords are always bound as query
// parameters, never spliced into SQL text.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, storage.Config{
//	    Driver:     "tidb",
//	    Connection: os.Getenv("TIDB_CONNECTION"),
//	    Table:      "documents",
//	    SSLCA:      "/etc/ssl/cert.pem",
//	    Limit:      10,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	hits, err := store.Search(ctx, "Gaianet node")
//
// # Local Corpus
//
// For the sqlite dialect the store can own its schema. Migrate creates the
// table, its FTS5 index and the triggers keeping both in sync, tracking
// applied versions with semantic versioning in schema_version:
//
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
//	docs, err := storage.ReadDocuments(f) // JSONL: {"title": ..., "content": ...}
//	n, err := store.Ingest(ctx, docs)
//
// Ingest works with every dialect as long as the table already exists.
//
// # Build Modes
//
// The sqlite dialect uses modernc.org/sqlite by default. Building with
// -tags "sqlite_cgo,sqlite_fts5" switches to github.com/mattn/go-sqlite3.
//
// # Concurrency
//
// The store wraps a database/sql pool and is safe for concurrent use.
// SQLite connections are limited to one, so in-memory databases stay shared.
package storage
