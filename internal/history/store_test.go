package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"dubsync/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "logs", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := history.Run{
		JobID:        uuid.NewString(),
		StartedAt:    started,
		FinishedAt:   started.Add(90 * time.Second),
		SubtitlePath: "/work/episode.srt",
		OutputPath:   "/work/episode.dubbed.wav",
		Strategy:     "compress",
		SlotCount:    42,
		FailureCount: 1,
		Target:       10 * time.Minute,
		Actual:       10*time.Minute + 40*time.Millisecond,
		Diff:         40 * time.Millisecond,
		Status:       history.StatusWarn,
		Corrected:    true,
	}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Get(ctx, run.JobID[:8])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run by prefix")
	}
	if got.Strategy != "compress" || got.Diff != 40*time.Millisecond || !got.Corrected || got.SlotCount != 42 {
		t.Fatalf("unexpected run %#v", got)
	}
	if got.Elapsed() != 90*time.Second {
		t.Fatalf("unexpected elapsed %s", got.Elapsed())
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := history.Run{
			JobID:        uuid.NewString(),
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
			FinishedAt:   base.Add(time.Duration(i)*time.Hour + time.Minute),
			SubtitlePath: "episode.srt",
			Status:       history.StatusOK,
			SlotCount:    i,
		}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 || runs[0].SlotCount != 2 || runs[1].SlotCount != 1 {
		t.Fatalf("unexpected ordering %#v", runs)
	}

	removed, err := store.Prune(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned runs, got %d", removed)
	}
}

func TestRecordDefaultsToFailed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	if err := store.Record(ctx, history.Run{JobID: id, SubtitlePath: "x.srt", Error: "assembly failed"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != history.StatusFailed || got.Error != "assembly failed" {
		t.Fatalf("unexpected run %#v", got)
	}
}

func TestRecordRequiresJobID(t *testing.T) {
	store := openStore(t)
	if err := store.Record(context.Background(), history.Run{}); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	store, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = store.Close()

	again, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer again.Close()
	if errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatal("unexpected schema mismatch")
	}
}
