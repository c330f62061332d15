package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"hopper/internal/models"
)

// DB is the durable state collaborator: a keyed table of thread records
// plus a key/value settings table. It is a best-effort convenience cache,
// not a system of record; callers treat write failures as non-fatal.
type DB struct {
	conn *sql.DB
}

// DefaultPath returns the per-user database location, creating the parent
// directory if needed.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dbDir := filepath.Join(configDir, "hopper")
	if err := os.MkdirAll(dbDir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dbDir, "hopper.db"), nil
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			state TEXT NOT NULL,
			time_taken_ms INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			total_tokens INTEGER,
			cost REAL,
			FOREIGN KEY(thread_id) REFERENCES threads(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_threads_updated_at ON threads(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread_id ON messages(thread_id, position);`,
	}

	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// LoadThreads returns every stored thread, most-recently-updated first,
// with messages in insertion order.
func (d *DB) LoadThreads() ([]models.Thread, error) {
	rows, err := d.conn.Query(
		"SELECT id, created_at, updated_at FROM threads ORDER BY updated_at DESC, id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []models.Thread{}
	for rows.Next() {
		var t models.Thread
		var createdAt, updatedAt int64
		if err := rows.Scan(&t.ID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.CreatedAt = time.UnixMilli(createdAt)
		t.UpdatedAt = time.UnixMilli(updatedAt)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range threads {
		msgs, err := d.loadMessages(threads[i].ID)
		if err != nil {
			return nil, err
		}
		threads[i].Messages = msgs
	}

	return threads, nil
}

func (d *DB) loadMessages(threadID string) ([]models.Message, error) {
	rows, err := d.conn.Query(
		`SELECT id, user_message, ai_response, state, time_taken_ms,
			prompt_tokens, completion_tokens, total_tokens, cost
		FROM messages WHERE thread_id = ? ORDER BY position ASC`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		var state string
		var timeTakenMs int64
		var promptTokens, completionTokens, totalTokens sql.NullInt64
		var cost sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.UserMessage, &m.AIResponse, &state, &timeTakenMs,
			&promptTokens, &completionTokens, &totalTokens, &cost); err != nil {
			return nil, err
		}
		m.State, err = models.ParseLoadingState(state)
		if err != nil {
			return nil, errors.Wrapf(err, "message %s", m.ID)
		}
		m.TimeTaken = time.Duration(timeTakenMs) * time.Millisecond
		if promptTokens.Valid {
			m.Usage = &models.Usage{
				PromptTokens:     promptTokens.Int64,
				CompletionTokens: completionTokens.Int64,
				TotalTokens:      totalTokens.Int64,
				Cost:             cost.Float64,
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ReplaceThreads replaces the whole durable table with the given snapshot
// in one transaction. Writing the same snapshot twice yields an identical
// table.
func (d *DB) ReplaceThreads(threads []models.Thread) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM threads"); err != nil {
		return err
	}

	for _, t := range threads {
		if _, err := tx.Exec(
			"INSERT INTO threads(id, created_at, updated_at) VALUES(?, ?, ?)",
			t.ID, t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
		); err != nil {
			return err
		}
		for pos, m := range t.Messages {
			var promptTokens, completionTokens, totalTokens sql.NullInt64
			var cost sql.NullFloat64
			if m.Usage != nil {
				promptTokens = sql.NullInt64{Int64: m.Usage.PromptTokens, Valid: true}
				completionTokens = sql.NullInt64{Int64: m.Usage.CompletionTokens, Valid: true}
				totalTokens = sql.NullInt64{Int64: m.Usage.TotalTokens, Valid: true}
				cost = sql.NullFloat64{Float64: m.Usage.Cost, Valid: true}
			}
			if _, err := tx.Exec(
				`INSERT INTO messages(id, thread_id, position, user_message, ai_response,
					state, time_taken_ms, prompt_tokens, completion_tokens, total_tokens, cost)
				VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, t.ID, pos, m.UserMessage, m.AIResponse,
				m.State.String(), m.TimeTaken.Milliseconds(),
				promptTokens, completionTokens, totalTokens, cost,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) GetSetting(key string) (string, bool, error) {
	var value string
	err := d.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *DB) SetSetting(key, value string) error {
	_, err := d.conn.Exec(
		"INSERT INTO settings(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (d *DB) DeleteSetting(key string) error {
	_, err := d.conn.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}
