package adapter

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// Snapshot format version, stored in PRAGMA user_version:
// 1 - records table
const sqliteFormatVersion = 1

// SQLite stores the whole state in a SQLite database file.
//
// Records are stored as JSON text with their collection position. Every
// persist builds a fresh database at a temp path and renames it over the
// destination, so the file is replaced atomically like the other unified
// adapters.
type SQLite struct {
	path string
}

// NewSQLite returns a SQLite snapshot adapter for path.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Path returns the database file.
func (s *SQLite) Path() string {
	return s.path
}

// Persist writes st to a new database and atomically replaces the file.
func (s *SQLite) Persist(st *state.State) error {
	rows, err := sqliteRows(st)
	if err != nil {
		return withPath(dberr.CodeSerialization, s.path, err)
	}
	err = writeAtomic(s.path, func(tmp string) error {
		return buildSnapshot(tmp, rows)
	})
	if err != nil {
		return dberr.IO(s.path, err)
	}
	return nil
}

// Load reads the database. A missing file is an empty state.
func (s *SQLite) Load(reg *model.Registry) (*state.State, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state.New(reg), nil
	}
	if err != nil {
		return nil, dberr.IO(s.path, err)
	}
	if info.IsDir() {
		return nil, dberr.IO(s.path, fmt.Errorf("expected a file, found a directory"))
	}

	// Permission and other filesystem errors surface here as IO, before the
	// driver reports them as query failures.
	f, err := os.Open(s.path)
	if err != nil {
		return nil, dberr.IO(s.path, err)
	}
	f.Close()

	dsn, err := sqliteDSN(s.path, "ro")
	if err != nil {
		return nil, dberr.IO(s.path, err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, dberr.IO(s.path, err)
	}
	defer db.Close()

	st, err := readSnapshot(db, reg)
	if err != nil {
		return nil, withPath(dberr.CodeSerialization, s.path, err)
	}
	return st, nil
}

type sqliteRow struct {
	model    string
	position int
	id       string
	body     string
}

// sqliteRows encodes every record before the database is touched, so
// encoding failures never leave a temp file behind.
func sqliteRows(st *state.State) ([]sqliteRow, error) {
	var rows []sqliteRow
	for _, c := range st.Collections() {
		m := c.Model()
		for i, r := range c.GetAll() {
			id, err := m.Key(r)
			if err != nil {
				return nil, err
			}
			body, err := marshalJSON(r)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", m.Name(), err)
			}
			rows = append(rows, sqliteRow{
				model:    m.Name(),
				position: i,
				id:       fmt.Sprintf("%v", id),
				body:     string(body),
			})
		}
	}
	return rows, nil
}

func buildSnapshot(path string, rows []sqliteRow) error {
	dsn, err := sqliteDSN(path, "rwc")
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteFormatVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO records (model, position, id, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.model, r.position, r.id, r.body); err != nil {
			return fmt.Errorf("insert %s id %s: %w", r.model, r.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return db.Close()
}

// sqliteDSN returns a file: URI for path. The path is percent-encoded, so
// '?', '#' and '%' in file or directory names are not read as URI syntax.
func sqliteDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // drive letter
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: "mode=" + mode}
	return u.String(), nil
}

// applyPragmas configures the build connection. The snapshot is private
// until renamed and the file is fsynced afterwards, so no journal is kept.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func readSnapshot(db *sql.DB, reg *model.Registry) (*state.State, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return nil, fmt.Errorf("get user_version: %w", err)
	}
	if version > sqliteFormatVersion {
		return nil, fmt.Errorf("snapshot format version %d is newer than supported version %d", version, sqliteFormatVersion)
	}

	rows, err := db.Query(`SELECT model, body FROM records ORDER BY model, position`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	byModel := make(map[string][]any)
	warned := make(map[string]bool)
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		m, ok := reg.Lookup(name)
		if !ok {
			if !warned[name] {
				slog.Warn("ignoring undeclared model in document", "model", name)
				warned[name] = true
			}
			continue
		}
		ptr := m.NewRecord()
		if err := json.Unmarshal([]byte(body), ptr); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		record, err := m.Deref(ptr)
		if err != nil {
			return nil, err
		}
		byModel[name] = append(byModel[name], record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	st := state.New(reg)
	for name, records := range byModel {
		if err := st.Replace(name, records); err != nil {
			return nil, err
		}
	}
	return st, nil
}
