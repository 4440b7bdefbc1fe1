package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/hupe1980/shapespace/loader"
	"github.com/hupe1980/shapespace/sample"
	_ "modernc.org/sqlite"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore serves shapes from a SQLite table with columns
// (id INTEGER PRIMARY KEY, payload BLOB).
type SQLiteStore struct {
	db     *sql.DB
	path   string
	table  string
	offset int
	query  string
}

// OpenSQLite opens the database at path read-only.
func OpenSQLite(path string, optFns ...Option) (*SQLiteStore, error) {
	opts := applyOptions(optFns)
	if !tableName.MatchString(opts.table) {
		return nil, fmt.Errorf("table: invalid table name %q", opts.table)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	return &SQLiteStore{
		db:     db,
		path:   path,
		table:  opts.table,
		offset: opts.offset,
		query:  fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", opts.table),
	}, nil
}

// Index implements sample.Indexer.
func (s *SQLiteStore) Index(ctx context.Context) (*sample.Collection, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("table: index %s: %w", s.path, err)
	}
	defer rows.Close()

	var samples []sample.Sample
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		samples = append(samples, sample.Sample{ID: id, Location: location(s.path, id)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sample.NewCollection(samples, s.offset)
}

// Load implements loader.Loader.
func (s *SQLiteStore) Load(ctx context.Context, smp sample.Sample) ([]float64, error) {
	var blob []byte
	if err := s.db.QueryRowContext(ctx, s.query, smp.ID).Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = os.ErrNotExist
		}
		return nil, &loader.LoadError{ID: smp.ID, Location: smp.Location, Err: err}
	}
	values, err := loader.Decode(loader.FormatFloat32, blob)
	if err == nil && len(values) == 0 {
		err = loader.ErrEmptyPayload
	}
	if err != nil {
		return nil, &loader.LoadError{ID: smp.ID, Location: smp.Location, Err: err}
	}
	return values, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSQLite creates a database at path holding rows.
func CreateSQLite(ctx context.Context, path string, rows []Shape, optFns ...Option) error {
	opts := applyOptions(optFns)
	if !tableName.MatchString(opts.table) {
		return fmt.Errorf("table: invalid table name %q", opts.table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, payload BLOB NOT NULL)", opts.table)); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (id, payload) VALUES (?, ?)", opts.table))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		blob, err := loader.Encode(loader.FormatFloat32, widen(r.Payload))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, blob); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("table: insert id %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
