package syncserver

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yuanying/epub-reader/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// DB stores users and their reading positions in SQLite.
type DB struct {
	db *sql.DB
}

// OpenDB opens the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// CreateUser registers a new user id.
func (d *DB) CreateUser(ctx context.Context, uuid string) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO users (uuid, last_update) VALUES (?, ?)",
		uuid, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Sync exchanges the client's books with the stored ones in one
// transaction. It returns the stored books the client lacks or holds an
// older copy of, and the titles inserted or updated from the client.
func (d *DB) Sync(ctx context.Context, req domain.SyncRequest) (updated []domain.SyncBook, accepted []string, err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (uuid, last_update) VALUES (?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET last_update = excluded.last_update`,
		req.UserUUID, time.Now().Unix()); err != nil {
		return nil, nil, fmt.Errorf("touch user: %w", err)
	}

	stored, err := listBooks(ctx, tx, req.UserUUID)
	if err != nil {
		return nil, nil, err
	}

	client := make(map[string]int64, len(req.Data))
	for _, b := range req.Data {
		client[b.Title] = b.UpdatedAt
	}
	updated = make([]domain.SyncBook, 0)
	known := make(map[string]int64, len(stored))
	for _, b := range stored {
		known[b.Title] = b.UpdatedAt
		if ts, ok := client[b.Title]; !ok || ts < b.UpdatedAt {
			updated = append(updated, b)
		}
	}

	accepted = make([]string, 0)
	for _, b := range req.Data {
		ts, ok := known[b.Title]
		switch {
		case !ok:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO books (user_uuid, updated_at, title, creator, language, last_read_index, total_index)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				req.UserUUID, b.UpdatedAt, b.Title, b.Creator, b.Language, b.LastReadIndex, b.TotalIndex)
		case b.UpdatedAt > ts:
			_, err = tx.ExecContext(ctx,
				`UPDATE books SET updated_at = ?, last_read_index = ?, total_index = ?
				 WHERE user_uuid = ? AND title = ?`,
				b.UpdatedAt, b.LastReadIndex, b.TotalIndex, req.UserUUID, b.Title)
		default:
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("save book %q: %w", b.Title, err)
		}
		known[b.Title] = b.UpdatedAt
		accepted = append(accepted, b.Title)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return updated, accepted, nil
}

// Books returns the stored books of a user ordered by id.
func (d *DB) Books(ctx context.Context, uuid string) ([]domain.SyncBook, error) {
	return listBooks(ctx, d.db, uuid)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listBooks(ctx context.Context, q queryer, uuid string) ([]domain.SyncBook, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, updated_at, title, creator, language, last_read_index, total_index
		 FROM books WHERE user_uuid = ? ORDER BY id`, uuid)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var out []domain.SyncBook
	for rows.Next() {
		var b domain.SyncBook
		if err := rows.Scan(&b.ID, &b.UpdatedAt, &b.Title, &b.Creator, &b.Language, &b.LastReadIndex, &b.TotalIndex); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UserExists reports whether uuid was registered.
func (d *DB) UserExists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE uuid = ?", uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}
