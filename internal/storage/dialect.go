package storage

import (
	"context"
	"strings"
)

// dialect holds the SQL that differs between keyword store backends
type dialect interface {
	name() string
	tableExists(ctx context.Context, q querier, database, table string) (bool, error)
	// searchQuery returns false when keywords hold nothing to match
	searchQuery(table, keywords string, limit int) (string, []any, bool)
	insertQuery(table string) string
	versionQuery() string
}

// quoteIdent quotes an identifier already validated by identifierRegex.
func quoteIdent(ident string, quote byte) string {
	q := string(quote)
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func countExists(ctx context.Context, q querier, want int, query string, args ...any) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n >= want, nil
}
