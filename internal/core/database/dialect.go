package db

import (
	"strconv"
	"strings"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// parseDatabaseURL picks the driver from the URL scheme. "sqlite://path" and
// "file:" URLs open SQLite; everything else is handed to pgx.
func parseDatabaseURL(raw string) (driver, dsn string, d dialect) {
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite", strings.TrimPrefix(raw, "sqlite://"), dialectSQLite
	case strings.HasPrefix(raw, "file:"):
		return "sqlite", raw, dialectSQLite
	default:
		return "pgx", raw, dialectPostgres
	}
}

// rebind rewrites '?' placeholders into $n for Postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lockSuffix is appended to a SELECT that must hold the row until commit.
func (d dialect) lockSuffix() string {
	if d == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
