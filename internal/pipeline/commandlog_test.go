package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/hearth/internal/infrastructure/config"
	"github.com/nerrad567/hearth/internal/infrastructure/database"
	"github.com/nerrad567/hearth/internal/intent"
	_ "github.com/nerrad567/hearth/migrations"
)

func setupCommandLog(t *testing.T) *SQLiteCommandLog {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "commands.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteCommandLog(db.DB)
}

func TestSQLiteCommandLog_RecordAndRecent(t *testing.T) {
	l := setupCommandLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)

	for i, text := range []string{"lights on", "fan off", "movie night"} {
		e := &LogEntry{
			Text:      text,
			Intent:    intent.KindTurnOn,
			Response:  "ok",
			CacheHit:  i == 1,
			Applied:   i,
			ElapsedMS: int64(100 * i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record(%q) error = %v", text, err)
		}
		if e.ID == "" {
			t.Fatal("Record() should fill the ID")
		}
	}

	entries, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Text != "movie night" || entries[1].Text != "fan off" {
		t.Errorf("order = %q, %q; want newest first", entries[0].Text, entries[1].Text)
	}
	if !entries[1].CacheHit || entries[0].CacheHit {
		t.Error("cache_hit not round-tripped")
	}
	if entries[0].Applied != 2 || entries[0].ElapsedMS != 200 {
		t.Errorf("entry = %+v", entries[0])
	}
	if !entries[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", entries[0].CreatedAt)
	}
	if entries[0].Intent != intent.KindTurnOn {
		t.Errorf("Intent = %s", entries[0].Intent)
	}
}

func TestSQLiteCommandLog_DuplicateID(t *testing.T) {
	l := setupCommandLog(t)
	ctx := context.Background()
	e := &LogEntry{ID: "cmd-1", Text: "x", Intent: intent.KindUnknown, Response: "?"}
	if err := l.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := l.Record(ctx, e); err == nil {
		t.Error("second Record() with the same ID should fail")
	}
}

func TestSQLiteCommandLog_DefaultLimit(t *testing.T) {
	l := setupCommandLog(t)
	ctx := context.Background()
	for i := range defaultLogLimit + 5 {
		e := &LogEntry{Text: "cmd", Intent: intent.KindUnknown, Response: "?", ElapsedMS: int64(i)}
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	entries, err := l.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != defaultLogLimit {
		t.Errorf("len = %d, want %d", len(entries), defaultLogLimit)
	}
}

func TestPipeline_WritesCommandLog(t *testing.T) {
	f := setup(t, Config{})
	l := setupCommandLog(t)
	f.p.commandLog = l
	f.backend.answer(`{"intent": "turn_on", "devices": ["office_light"]}`)

	resp, err := f.p.HandleCommand(context.Background(), "desk lamp on")
	if err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	entries, err := f.p.RecentCommands(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentCommands() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != resp.ID || entries[0].Applied != 1 {
		t.Errorf("entries = %+v", entries)
	}
}
