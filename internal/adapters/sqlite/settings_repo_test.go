package sqlite

import (
	"context"
	"testing"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSettingsRepository_DefaultsAndPersist(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t).SQL)

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get(default): %v", err)
	}
	if got != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}

	want := domain.Settings{MinWeight: 12, MaxRecentPicks: 4, RefreshWorkers: 6, DefaultExcludeRecent: false}
	updated, err := repo.Put(ctx, want)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if updated != want {
		t.Fatalf("Put: want %+v, got %+v", want, updated)
	}

	got2, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get(after Put): %v", err)
	}
	if got2 != want {
		t.Fatalf("Get after Put: want %+v, got %+v", want, got2)
	}

	reset, err := repo.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset != domain.DefaultSettings() {
		t.Fatalf("Reset: want defaults, got %+v", reset)
	}
}

func TestSettingsRepository_PartialBlobKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSettingsRepository(db.SQL)

	if _, err := db.SQL.ExecContext(ctx, `INSERT INTO settings(key, value_json, updated_at) VALUES(?, ?, ?)`,
		settingsKey, []byte(`{"minWeight":7}`), "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := domain.DefaultSettings()
	want.MinWeight = 7
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}
}

func TestSettingsRepository_OutOfBoundsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSettingsRepository(db.SQL)

	blob := `{"minWeight":0,"maxRecentPicks":8,"refreshWorkers":99,"defaultExcludeRecent":false}`
	if _, err := db.SQL.ExecContext(ctx, `INSERT INTO settings(key, value_json, updated_at) VALUES(?, ?, ?)`,
		settingsKey, []byte(blob), "2026-01-01T00:00:00.000000Z"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	def := domain.DefaultSettings()
	want := domain.Settings{MinWeight: def.MinWeight, MaxRecentPicks: 8, RefreshWorkers: def.RefreshWorkers, DefaultExcludeRecent: false}
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}

	if _, err := db.SQL.ExecContext(ctx, `UPDATE settings SET value_json = ? WHERE key = ?`, []byte(`{not json`), settingsKey); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := repo.Get(ctx); got != def {
		t.Fatalf("unreadable blob: want defaults, got %+v", got)
	}
}
