package workdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"dubsync/internal/logging"
)

func makeDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "0001.wav"), []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldDirectories(t *testing.T) {
	root := t.TempDir()
	oldDir := makeDir(t, root, "episode-01", 48*time.Hour)
	recentDir := makeDir(t, root, "episode-02", 0)

	result := CleanStale(context.Background(), root, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Fatal("recent directory should still exist")
	}
}

func TestCleanStaleSkipsLockedDirectories(t *testing.T) {
	root := t.TempDir()
	dir := makeDir(t, root, "episode-03", 48*time.Hour)

	lock := flock.New(filepath.Join(dir, LockName))
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()
	// Creating the lock file bumped the mtime.
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", result.Removed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != dir {
		t.Fatalf("expected %s skipped, got %v", dir, result.Skipped)
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "stray.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(file, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected files to be ignored, got %v", result.Removed)
	}
}

func TestListOrdersOldestFirst(t *testing.T) {
	root := t.TempDir()
	makeDir(t, root, "newer", time.Hour)
	makeDir(t, root, "older", 3*time.Hour)

	dirs, err := List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 2 || dirs[0].Name != "older" || dirs[1].Name != "newer" {
		t.Fatalf("unexpected order: %+v", dirs)
	}
	if dirs[0].Size != 3 {
		t.Fatalf("size = %d, want 3", dirs[0].Size)
	}
	if dirs[0].Busy {
		t.Fatal("unlocked directory reported busy")
	}
}
