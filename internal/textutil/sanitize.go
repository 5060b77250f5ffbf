package textutil

import (
	"path/filepath"
	"strings"
)

var unsafeReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces characters that are unsafe in a path segment.
// Separators, colons and asterisks become dashes; the rest are dropped.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(unsafeReplacer.Replace(name))
}

// StemName returns the sanitized base name of path without its extension,
// or fallback when nothing usable remains.
func StemName(path, fallback string) string {
	base := filepath.Base(strings.TrimSpace(path))
	stem := SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	stem = strings.Trim(stem, ".")
	if stem == "" {
		return fallback
	}
	return stem
}
