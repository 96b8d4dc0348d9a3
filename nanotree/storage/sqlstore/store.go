// Package sqlstore hosts a tree in a SQLite table.
//
// Each tree is one table with a column per semantic field, one untyped
// column per orderBy field and a JSON payload column. All structural
// queries are built with squirrel from query.Query values.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/arthur-debert/nanotree/internal/validation"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Store implements storage.Backend over a SQLite database.
type Store struct {
	reader
	db     *sql.DB
	ownsDB bool
}

var _ storage.Backend = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at dsn and prepares
// the tree table. Use ":memory:" for a throwaway database.
func Open(dsn string, opts types.Options) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set busy timeout first to help with concurrent access during initialization
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -2000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// For WAL mode, ignore "database is locked" errors on secondary connections
			// as the first connection will have already set it
			if pragma == "PRAGMA journal_mode = WAL" && strings.Contains(err.Error(), "database is locked") {
				continue
			}
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	// One connection: transactions serialize and :memory: stays one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s, err := New(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New hosts a tree in an already open database. The caller keeps ownership
// of db; Close does not close it.
func New(db *sql.DB, opts types.Options) (*Store, error) {
	opts = opts.WithDefaults()
	if err := validation.Validate(opts); err != nil {
		return nil, err
	}

	s := &Store{
		reader: reader{
			r:    db,
			opts: opts,
			sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		},
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the table, its indexes and the encoding record, and
// checks an existing table against the options.
func (s *Store) migrate() error {
	sb := newSchemaBuilder(s.opts)

	for _, ddl := range []string{sb.createMetaTable(), sb.createTable()} {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, ddl := range sb.indexes() {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	existing, err := s.columns()
	if err != nil {
		return err
	}
	if missing := sb.missingColumns(existing); len(missing) > 0 {
		return fmt.Errorf("%w: table %s is missing columns %v", types.ErrInvalidConfig, s.opts.Table, missing)
	}

	return s.checkMetadata()
}

// columns lists the table's column names, lowercased.
func (s *Store) columns() (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", s.opts.Table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to inspect table: %w", err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// checkMetadata records the path encoding on first use and rejects a
// mismatch afterwards.
func (s *Store) checkMetadata() error {
	want := storage.MetadataFor(s.opts)

	var got storage.Metadata
	err := s.sq.Select("version", "alphabet", "step_length").
		From(metaTable).
		Where(squirrel.Eq{"tbl": s.opts.Table}).
		RunWith(s.db).
		QueryRow().
		Scan(&got.Version, &got.Alphabet, &got.StepLength)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.sq.Insert(metaTable).
			Columns("tbl", "version", "alphabet", "step_length").
			Values(s.opts.Table, want.Version, want.Alphabet, want.StepLength).
			RunWith(s.db).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to record metadata: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	if got.Alphabet != want.Alphabet || got.StepLength != want.StepLength {
		return fmt.Errorf("%w: table %s was created with alphabet %q and step length %d",
			types.ErrInvalidConfig, s.opts.Table, got.Alphabet, got.StepLength)
	}
	return nil
}

// Options implements storage.Backend.
func (s *Store) Options() types.Options {
	return s.opts
}

// Begin implements storage.Backend.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &tx{
		reader: reader{r: sqlTx, opts: s.opts, sq: s.sq},
		tx:     sqlTx,
	}, nil
}

// DB exposes the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases database resources.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
