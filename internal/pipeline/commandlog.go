package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hearth/internal/intent"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 200

	timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// LogEntry is one handled command as stored in the command log.
type LogEntry struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Intent    intent.Kind `json:"intent"`
	Response  string      `json:"response"`
	CacheHit  bool        `json:"cache_hit"`
	Applied   int         `json:"applied"`
	Failed    int         `json:"failed"`
	ElapsedMS int64       `json:"elapsed_ms"`
	CreatedAt time.Time   `json:"created_at"`
}

// CommandLog persists handled commands.
type CommandLog interface {
	Record(ctx context.Context, e *LogEntry) error
	Recent(ctx context.Context, limit int) ([]LogEntry, error)
}

// SQLiteCommandLog implements CommandLog on the command_log table.
type SQLiteCommandLog struct {
	db *sql.DB
}

// NewSQLiteCommandLog creates a command log on an open, migrated database.
func NewSQLiteCommandLog(db *sql.DB) *SQLiteCommandLog {
	return &SQLiteCommandLog{db: db}
}

// Record inserts e, filling an empty ID and CreatedAt.
func (l *SQLiteCommandLog) Record(ctx context.Context, e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO command_log (
			id, raw_text, intent, response, cache_hit, applied, failed, elapsed_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Text, string(e.Intent), e.Response, boolToInt(e.CacheHit),
		e.Applied, e.Failed, e.ElapsedMS, e.CreatedAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first (default 20, max 200).
func (l *SQLiteCommandLog) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, raw_text, intent, response, cache_hit, applied, failed, elapsed_ms, created_at
		FROM command_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var kind, createdAt string
		var cacheHit int
		if err := rows.Scan(&e.ID, &e.Text, &kind, &e.Response, &cacheHit,
			&e.Applied, &e.Failed, &e.ElapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log entry: %w", err)
		}
		e.Intent = intent.Kind(kind)
		e.CacheHit = cacheHit == 1
		if t, parseErr := time.Parse(timestampFormat, createdAt); parseErr == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
