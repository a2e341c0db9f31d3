// Package store is the canonical single-writer relational store: products,
// listings, the upload queue, platform metadata, account credential
// tokens, and price history. Every mutating operation runs inside a
// transaction that commits on return and rolls back on error; read paths
// may run outside one.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/ngfilter"
	_ "modernc.org/sqlite"
)

// Store wraps the canonical SQLite database.
type Store struct {
	sql     *sql.DB
	lexicon ngfilter.Lexicon
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLexicon installs a prohibited-keyword lexicon used to scrub product
// text before it is persisted. The default is ngfilter.NoOp.
func WithLexicon(l ngfilter.Lexicon) Option {
	return func(s *Store) { s.lexicon = l }
}

// Open opens (creating if absent) the SQLite database at path in WAL mode
// and runs every pending migration.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer per file, per the concurrency model

	s := &Store{sql: db, lexicon: ngfilter.NoOp{}}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	logger.Success("Store", fmt.Sprintf("opened %s", path))
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// SQL exposes the underlying *sql.DB for callers that need raw access
// (migration tooling, admin diagnostics).
func (s *Store) SQL() *sql.DB {
	return s.sql
}

// withTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise.
func (s *Store) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ensureTableColumn adds columnDef to table if it does not already have a
// column named columnName, matching case-insensitively.
func ensureTableColumn(db *sql.DB, table, columnName, columnDef string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dfltValue interface{}
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, columnName) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, columnName, columnDef))
	return err
}
