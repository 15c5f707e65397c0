package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// SQLite is an embedded single-file store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS log_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_log_entries_user ON log_entries(user_id, created_at, id);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close(context.Context) error { return s.db.Close() }

func (s *SQLite) AppendLogEntry(ctx context.Context, userID string, msg chat.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_entries (user_id, message_id, sender, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, msg.ID, string(msg.Sender), msg.Text, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

func (s *SQLite) FetchLogHistory(ctx context.Context, userID string, limit int) ([]chat.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, sender, text, created_at FROM log_entries
		 WHERE user_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		userID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []chat.LogEntry
	for rows.Next() {
		var (
			entry   chat.LogEntry
			sender  string
			created int64
		)
		if err := rows.Scan(&entry.ID, &sender, &entry.Text, &created); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entry.Sender = chat.Sender(sender)
		entry.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}

	return entries, nil
}

func (s *SQLite) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt.UTC().UnixNano(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var (
		user    User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = time.Unix(0, created).UTC()
	return user, nil
}
