package storage

import (
	"context"
	"fmt"
	"strings"
)

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) tableExists(ctx context.Context, q querier, _ string, table string) (bool, error) {
	return countExists(ctx, q, 2,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN (?, ?)`,
		table, ftsTable(table))
}

// searchQuery matches the FTS5 index. In FTS5, rank is bm25 and lower is better.
func (sqliteDialect) searchQuery(table, keywords string, limit int) (string, []any, bool) {
	expr := ftsMatchExpr(keywords)
	if expr == "" {
		return "", nil, false
	}
	fts := quoteIdent(ftsTable(table), '"')
	query := fmt.Sprintf(`SELECT d.id, d.title, d.content
		FROM %s
		JOIN %s d ON d.id = %s.rowid
		WHERE %s MATCH ?
		ORDER BY rank
		LIMIT ?`, fts, quoteIdent(table, '"'), fts, fts)
	return query, []any{expr, limit}, true
}

func (sqliteDialect) insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (title, content) VALUES (?, ?)", quoteIdent(table, '"'))
}

func (sqliteDialect) versionQuery() string { return "SELECT sqlite_version()" }

func ftsTable(table string) string {
	return table + "_fts"
}

// ftsMatchExpr quotes every keyword as an FTS5 string and ORs them together.
func ftsMatchExpr(keywords string) string {
	words := splitKeywords(keywords)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
