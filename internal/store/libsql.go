package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/keyfob/keyfob/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

func (s *LibSQLStore) ListEntries(ctx context.Context, ring string) ([]*EntryInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, created_at FROM entries WHERE ring = ? ORDER BY display_name`, ring)
	if err != nil {
		return nil, storeError("list entries", err)
	}
	defer rows.Close()

	var infos []*EntryInfo
	for rows.Next() {
		info := &EntryInfo{}
		if err := rows.Scan(&info.ID, &info.DisplayName, &info.CreatedAt); err != nil {
			return nil, storeError("scan entry", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *LibSQLStore) GetInfo(ctx context.Context, ring, id string) (*EntryInfo, error) {
	info := &EntryInfo{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at FROM entries WHERE ring = ? AND id = ?`, ring, id,
	).Scan(&info.ID, &info.DisplayName, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("entry", id)
	}
	if err != nil {
		return nil, storeError("get entry info", err)
	}
	return info, nil
}

func (s *LibSQLStore) FindEntries(ctx context.Context, ring string, attrs map[string]string) ([]*Entry, error) {
	query, args := findQuery(ring, attrs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("find entries", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{Ring: ring}
		var secret []byte
		if err := rows.Scan(&e.ID, &e.DisplayName, &secret, &e.CreatedAt); err != nil {
			return nil, storeError("scan entry", err)
		}
		e.Secret = secret
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("find entries", err)
	}

	for _, e := range entries {
		if e.Attributes, err = s.loadAttributes(ctx, e.ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// findQuery builds the intersection query: one EXISTS clause per attribute pair.
func findQuery(ring string, attrs map[string]string) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, display_name, secret, created_at FROM entries WHERE ring = ?`)
	args := []any{ring}
	for name, value := range attrs {
		b.WriteString(` AND EXISTS (SELECT 1 FROM entry_attributes a WHERE a.entry_id = entries.id AND a.name = ? AND a.value = ?)`)
		args = append(args, name, value)
	}
	b.WriteString(` ORDER BY created_at`)
	return b.String(), args
}

func (s *LibSQLStore) loadAttributes(ctx context.Context, entryID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM entry_attributes WHERE entry_id = ?`, entryID)
	if err != nil {
		return nil, storeError("load attributes", err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, storeError("scan attribute", err)
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

func (s *LibSQLStore) CreateEntry(ctx context.Context, ring, displayName string, attrs map[string]string, secret []byte, replace bool) (string, error) {
	if replace {
		existing, err := s.FindEntries(ctx, ring, attrs)
		if err != nil {
			return "", err
		}
		for _, e := range existing {
			if err := s.DeleteEntry(ctx, ring, e.ID); err != nil {
				return "", err
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storeError("begin create entry", err)
	}

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries (id, ring, display_name, secret, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, ring, displayName, secret, time.Now().UTC(),
	); err != nil {
		_ = tx.Rollback()
		return "", storeError("insert entry", err)
	}
	for name, value := range attrs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entry_attributes (entry_id, name, value) VALUES (?, ?, ?)`,
			id, name, value,
		); err != nil {
			_ = tx.Rollback()
			return "", storeError("insert attribute", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", storeError("commit create entry", err)
	}
	return id, nil
}

func (s *LibSQLStore) DeleteEntry(ctx context.Context, ring, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE ring = ? AND id = ?`, ring, id)
	if err != nil {
		return storeError("delete entry", err)
	}
	return checkRowsAffected(res, "entry", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.KeyfobError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op string, err error) *schema.KeyfobError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}
