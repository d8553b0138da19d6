package relational

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Dialect captures the few SQL differences between the supported engines.
type Dialect struct {
	Name         string
	// numbered placeholders ($1, $2, ...) instead of "?"
	numbered     bool
	// appended to every CREATE TABLE
	tableOptions string
}

// Supported dialects.
var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", numbered: true}
	// MySQL compares names byte for byte, as SQLite and Postgres do by
	// default, so UNIQUE(school_id, name) agrees with the integrity checks.
	MySQL    = Dialect{Name: "mysql", tableOptions: " DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"}
)

// Rebind rewrites "?" placeholders into the dialect's bind variable form.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
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

// schemaStatements is portable across SQLite, Postgres and MySQL; dialects
// only add table options. Keys stay at 191 characters so composite unique
// indexes fit MySQL's utf8mb4 limit.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schools (
		id VARCHAR(191) NOT NULL PRIMARY KEY,
		name VARCHAR(191) NOT NULL UNIQUE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS colleges (
		id VARCHAR(191) NOT NULL PRIMARY KEY,
		school_id VARCHAR(191) NOT NULL,
		name VARCHAR(191) NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE (school_id, name),
		FOREIGN KEY (school_id) REFERENCES schools(id)
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id VARCHAR(191) NOT NULL PRIMARY KEY,
		first_name VARCHAR(191) NOT NULL,
		last_name VARCHAR(191) NOT NULL,
		school_id VARCHAR(191) NOT NULL,
		college_id VARCHAR(191) NULL,
		college_name VARCHAR(191) NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		FOREIGN KEY (school_id) REFERENCES schools(id),
		FOREIGN KEY (college_id) REFERENCES colleges(id)
	)`,
}

// Schema returns the DDL applied on open for d, in dependency order.
func (d Dialect) Schema() []string {
	out := make([]string, len(schemaStatements))
	for i, stmt := range schemaStatements {
		out[i] = stmt + d.tableOptions
	}
	return out
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applySchema(ctx context.Context, db execer, dialect Dialect) error {
	for _, stmt := range dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
