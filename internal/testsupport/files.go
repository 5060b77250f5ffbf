package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteClip writes body to <dir>/<index as %04d><ext> and returns the path.
// Test probers read the clip's duration back from body.
func WriteClip(t testing.TB, dir string, index int, ext, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%04d%s", index, ext))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write clip %s: %v", path, err)
	}
	return path
}

// Cue is one subtitle entry in milliseconds.
type Cue struct {
	StartMS int64
	EndMS   int64
	Text    string
}

// WriteSRT renders cues as an SRT file at path.
func WriteSRT(t testing.TB, path string, cues ...Cue) {
	t.Helper()
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtStamp(cue.StartMS), srtStamp(cue.EndMS), cue.Text)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write srt %s: %v", path, err)
	}
}

func srtStamp(ms int64) string {
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}
