package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/hearth/internal/executor"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500

	timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrRunExists is returned when a run ID is recorded twice.
var ErrRunExists = errors.New("automation: run already recorded")

// Repository persists automation runs.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// runColumns is the SELECT column list for run queries.
const runColumns = `id, rule, reason, status, actions_total, applied, skipped, failed,
			saved_wh, failures, duration_ms, triggered_at`

// SQLiteRepository implements Repository on the automation_runs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRun inserts run. An empty ID is filled with a new UUID.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.TriggeredAt.IsZero() {
		run.TriggeredAt = time.Now().UTC()
	}
	failures, err := marshalFailures(run.Failures)
	if err != nil {
		return fmt.Errorf("marshalling failures: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_runs (
			id, rule, reason, status, actions_total, applied, skipped, failed,
			saved_wh, failures, duration_ms, triggered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Rule, run.Reason, string(run.Status), run.ActionsTotal,
		run.Applied, run.Skipped, run.Failed, run.SavedWh, failures,
		run.DurationMS, run.TriggeredAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRunExists
		}
		return fmt.Errorf("inserting automation run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first (default 50, max 500).
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM automation_runs ORDER BY triggered_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying automation runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning automation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automation runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var status, failures, triggeredAt string
	err := rows.Scan(
		&run.ID,
		&run.Rule,
		&run.Reason,
		&status,
		&run.ActionsTotal,
		&run.Applied,
		&run.Skipped,
		&run.Failed,
		&run.SavedWh,
		&failures,
		&run.DurationMS,
		&triggeredAt,
	)
	if err != nil {
		return Run{}, err
	}

	run.Status = executor.BatchStatus(status)
	if t, parseErr := time.Parse(timestampFormat, triggeredAt); parseErr == nil {
		run.TriggeredAt = t
	}
	if failures != "" && failures != "[]" {
		if jsonErr := json.Unmarshal([]byte(failures), &run.Failures); jsonErr != nil {
			return Run{}, fmt.Errorf("unmarshalling failures: %w", jsonErr)
		}
	}
	return run, nil
}

func marshalFailures(failures []Failure) (string, error) {
	if len(failures) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isUniqueConstraintError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
