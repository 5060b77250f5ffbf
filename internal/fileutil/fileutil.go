// Package fileutil holds the small file helpers shared by the media stages:
// slot-keyed naming and write-to-temp-then-rename commits.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PartSuffix marks files that are still being written.
const PartSuffix = ".part"

// SlotFileName returns the per-slot file name "slot_NNNN<ext>".
func SlotFileName(index int, ext string) string {
	return fmt.Sprintf("slot_%04d%s", index, ext)
}

// PartPath returns the in-progress name for path.
func PartPath(path string) string {
	return path + PartSuffix
}

// Commit renames a finished part file onto its final name. The part file is
// removed when the rename fails.
func Commit(part, final string) error {
	if err := os.Rename(part, final); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("commit %s: %w", filepath.Base(final), err)
	}
	return nil
}

// Discard removes a part file, ignoring a missing file.
func Discard(part string) {
	_ = os.Remove(part)
}

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyAtomic copies src to dst through a part file so readers never observe a
// partially written dst.
func CopyAtomic(src, dst string) error {
	part := PartPath(dst)
	if err := CopyFile(src, part); err != nil {
		Discard(part)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return Commit(part, dst)
}

// RemovePartFiles deletes leftover part files in dir, returning how many were removed.
func RemovePartFiles(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+PartSuffix))
	if err != nil {
		return 0
	}
	removed := 0
	for _, match := range matches {
		if os.Remove(match) == nil {
			removed++
		}
	}
	return removed
}
