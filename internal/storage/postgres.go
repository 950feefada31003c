package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) tableExists(ctx context.Context, q querier, _ string, table string) (bool, error) {
	return countExists(ctx, q, 1,
		`SELECT COUNT(*) FROM information_schema.tables
		WHERE table_catalog = current_database() AND table_schema = current_schema() AND table_name = $1`,
		table)
}

// searchQuery ORs the keywords with websearch_to_tsquery, which never
// rejects user text with a syntax error.
func (postgresDialect) searchQuery(table, keywords string, limit int) (string, []any, bool) {
	terms := websearchTerms(keywords)
	if terms == "" {
		return "", nil, false
	}
	query := fmt.Sprintf(`SELECT id, title, content FROM %s
		WHERE to_tsvector('simple', content) @@ websearch_to_tsquery('simple', $1)
		ORDER BY ts_rank(to_tsvector('simple', content), websearch_to_tsquery('simple', $1)) DESC
		LIMIT $2`, quoteIdent(table, '"'))
	return query, []any{terms, limit}, true
}

func (postgresDialect) insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (title, content) VALUES ($1, $2)", quoteIdent(table, '"'))
}

func (postgresDialect) versionQuery() string { return "SHOW server_version" }

// websearchTerms strips websearch operators from each keyword and joins them with "or".
func websearchTerms(keywords string) string {
	var terms []string
	for _, w := range splitKeywords(keywords) {
		w = strings.Trim(strings.ReplaceAll(w, `"`, ""), "-")
		if w == "" || strings.EqualFold(w, "or") {
			continue
		}
		terms = append(terms, w)
	}
	return strings.Join(terms, " or ")
}

func openPostgres(conn string) (*sql.DB, string, error) {
	cfg, err := pgx.ParseConfig(conn)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}

	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, cfg.Database, nil
}
