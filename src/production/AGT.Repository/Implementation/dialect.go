package implementation

import "strings"

// Dialect selects the SQL flavor queries run against. Queries are written
// postgres-style ($n placeholders) and rebound for sqlite.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// rebind rewrites $n placeholders to ? for sqlite. Queries must use $1..$n
// in order of appearance, each exactly once.
func (d Dialect) rebind(query string) string {
	if d != DialectSQLite {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// serialPK returns the autoincrementing primary key column definition.
func (d Dialect) serialPK() string {
	if d == DialectSQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

// timestampType returns the timestamp column type.
func (d Dialect) timestampType() string {
	if d == DialectSQLite {
		return "TIMESTAMP"
	}
	return "TIMESTAMPTZ"
}
