package testsupport

import (
	"context"
	"testing"

	"dubsync/internal/config"
	"dubsync/internal/history"
)

// MustOpenHistory opens the config's history ledger and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(context.Background(), cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
