package storage

import (
	"database/sql"
	"strconv"
	"strings"
)

// dialect captures the few places where the SQLite and PostgreSQL schemas
// need different SQL.
type dialect struct {
	name      string
	forUpdate string
	numbered  bool
	txOptions *sql.TxOptions
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		// the connection opens every transaction with BEGIN IMMEDIATE, which
		// already holds the database write lock
		forUpdate: "",
	}
	postgresDialect = dialect{
		name:      "postgres",
		forUpdate: " FOR UPDATE",
		numbered:  true,
		txOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
)

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
