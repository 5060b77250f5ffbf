package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"dubsync/internal/fileutil"
	"dubsync/internal/services"
)

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// DiscoverClips maps 1-based slot indexes to clip files in dir. Files are
// matched by their leading digits ("0001.wav", "12_speaker.mp3"). When two
// files claim the same slot the lexically first wins and the rest are
// returned as duplicates.
func DiscoverClips(dir string) (map[int]string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "reconcile", "discover clips", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, fileutil.PartSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	clips := make(map[int]string, len(names))
	var duplicates []string
	for _, name := range names {
		match := leadingDigits.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil || index <= 0 {
			continue
		}
		path := filepath.Join(dir, name)
		if _, exists := clips[index]; exists {
			duplicates = append(duplicates, path)
			continue
		}
		clips[index] = path
	}
	return clips, duplicates, nil
}

// clipsFromList maps an explicit ordered list onto slot indexes.
func clipsFromList(paths []string, slots int) (map[int]string, error) {
	if len(paths) > slots {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "clips",
			fmt.Sprintf("%d clips for %d slots", len(paths), slots), nil)
	}
	clips := make(map[int]string, len(paths))
	for i, path := range paths {
		if path = strings.TrimSpace(path); path != "" {
			clips[i+1] = path
		}
	}
	return clips, nil
}
