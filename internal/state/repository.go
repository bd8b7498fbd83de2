package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/hearth/internal/infrastructure/database"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// timestampFormat is fixed width so text order equals time order.
	timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Transition sources recorded in history.
const (
	SourceCommand    = "command"
	SourceScene      = "scene"
	SourceAutomation = "automation"
	SourceRestore    = "restore"
	SourceShutdown   = "shutdown"
	SourceAPI        = "api"
)

// HistoryEntry is one committed transition.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Device    string    `json:"device"`
	On        bool      `json:"is_on"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists last known device states and their history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordTransition upserts the device's last known state and appends a
	// history row.
	RecordTransition(ctx context.Context, name string, on bool, source string, at time.Time) error

	// LoadStates returns the last known state of every persisted device.
	LoadStates(ctx context.Context) (map[string]bool, error)

	// GetHistory returns recent transitions for a device, newest first.
	GetHistory(ctx context.Context, name string, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes history entries older than olderThan.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository on the device_state and
// state_history tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordTransition writes the state and history row in one transaction.
func (r *SQLiteRepository) RecordTransition(ctx context.Context, name string, on bool, source string, at time.Time) error {
	if name == "" {
		return fmt.Errorf("device name is required")
	}
	if source == "" {
		source = SourceCommand
	}
	ts := at.UTC().Format(timestampFormat)

	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO device_state (device_name, is_on, changed_at) VALUES (?, ?, ?)
			 ON CONFLICT(device_name) DO UPDATE SET is_on = excluded.is_on, changed_at = excluded.changed_at`,
			name, boolToInt(on), ts,
		); err != nil {
			return fmt.Errorf("upserting device state: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO state_history (device_name, is_on, source, created_at) VALUES (?, ?, ?, ?)",
			name, boolToInt(on), source, ts,
		); err != nil {
			return fmt.Errorf("inserting state history: %w", err)
		}
		return nil
	})
}

// LoadStates returns device name -> last known on/off.
func (r *SQLiteRepository) LoadStates(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT device_name, is_on FROM device_state")
	if err != nil {
		return nil, fmt.Errorf("querying device state: %w", err)
	}
	defer rows.Close()

	states := make(map[string]bool)
	for rows.Next() {
		var name string
		var on int
		if err := rows.Scan(&name, &on); err != nil {
			return nil, fmt.Errorf("scanning device state: %w", err)
		}
		states[name] = on == 1
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device state: %w", err)
	}
	return states, nil
}

// GetHistory returns up to limit entries (default 50, max 200).
func (r *SQLiteRepository) GetHistory(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	if name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_name, is_on, source, created_at
		 FROM state_history
		 WHERE device_name = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		var on int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Device, &on, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		e.On = on == 1
		if e.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than now-olderThan.
func (r *SQLiteRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampFormat)
	result, err := r.db.ExecContext(ctx, "DELETE FROM state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
