package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dubsync/internal/config"
)

// StubFFprobe answers every probe with one canonical PCM stream whose
// duration, in seconds, is the body of the probed file.
const StubFFprobe = `#!/bin/sh
for last; do :; done
secs=$(cat "$last")
printf '{"streams":[{"index":0,"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"44100","channels":2}],"format":{"duration":"%s","format_name":"wav"}}\n' "$secs"
`

// StubFFmpeg lists a minimal filter and encoder set and otherwise succeeds
// without writing anything.
const StubFFmpeg = `#!/bin/sh
case "$*" in
  *-filters*)
    echo " T.. atempo            A->A       Adjust audio tempo."
    echo " ... anullsrc          |->A       Null audio source, return empty audio frames."
    ;;
  *-encoders*)
    echo " V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC"
    echo " A....D aac                  AAC (Advanced Audio Coding)"
    ;;
esac
exit 0
`

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Directories are created and the history ledger lives under the log dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(base, "logs", "history.db")
	cfgVal.Transform.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkers sets the transform worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transform.Workers = n
	}
}

// WithStubbedTools writes StubFFmpeg and StubFFprobe into <base>/bin and
// points the config's tool paths at them.
func WithStubbedTools() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		b.cfg.Tools.FFmpeg = writeScript(b.t, filepath.Join(binDir, "ffmpeg"), StubFFmpeg)
		b.cfg.Tools.FFprobe = writeScript(b.t, filepath.Join(binDir, "ffprobe"), StubFFprobe)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}

func writeScript(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
	return path
}
