package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSlotFileName(t *testing.T) {
	if got := SlotFileName(7, ".wav"); got != "slot_0007.wav" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestCopyAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "dst.wav")
	if err := os.WriteFile(src, []byte("pcm data"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := CopyAtomic(src, dst); err != nil {
		t.Fatalf("CopyAtomic returned error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "pcm data" {
		t.Fatalf("unexpected dst content %q (%v)", data, err)
	}
	if _, err := os.Stat(PartPath(dst)); !os.IsNotExist(err) {
		t.Fatal("expected part file to be gone")
	}
}

func TestCopyAtomicMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.wav")
	if err := CopyAtomic(filepath.Join(dir, "missing.wav"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(PartPath(dst)); !os.IsNotExist(err) {
		t.Fatal("expected no part file left behind")
	}
}

func TestCommitRemovesPartOnFailure(t *testing.T) {
	dir := t.TempDir()
	part := filepath.Join(dir, "a.wav.part")
	if err := os.WriteFile(part, []byte("x"), 0o644); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := Commit(part, filepath.Join(dir, "missing-dir", "a.wav")); err == nil {
		t.Fatal("expected rename error")
	}
	if _, err := os.Stat(part); !os.IsNotExist(err) {
		t.Fatal("expected part file removed")
	}
}

func TestRemovePartFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"slot_0001.wav.part", "slot_0002.wav.part", "slot_0003.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if got := RemovePartFiles(dir); got != 2 {
		t.Fatalf("expected 2 removed, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "slot_0003.wav")); err != nil {
		t.Fatalf("finished file should remain: %v", err)
	}
}
