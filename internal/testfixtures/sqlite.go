package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Medications   persistence.MedicationRepository
	Logs          persistence.MedicationLogRepository
	Subscriptions persistence.SubscriptionRepository
	Settings      persistence.SettingRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a temporary database file
// that is migrated automatically. A cleanup callback is registered with the
// provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "pilltime.db")

	pool, err := sqlite.Open("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Medications:   sqlite.NewMedicationRepository(pool),
		Logs:          sqlite.NewLogRepository(pool),
		Subscriptions: sqlite.NewSubscriptionRepository(pool),
		Settings:      sqlite.NewSettingRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
