package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubsync/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	clipDir    string
	subtitle   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("DUBSYNC_WORK_DIR", "")
	t.Setenv("DUBSYNC_FFMPEG", "")
	t.Setenv("DUBSYNC_FFPROBE", "")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedTools())
	base := testsupport.BaseDir(cfg)

	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, ".config", "dubsync", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf("[paths]\nwork_dir = %q\noutput_dir = %q\nlog_dir = %q\n\n[tools]\nffmpeg = %q\nffprobe = %q\n\n[history]\nenabled = true\npath = %q\n",
		cfg.Paths.WorkDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Tools.FFmpeg,
		cfg.Tools.FFprobe,
		cfg.History.Path,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	subtitle := filepath.Join(base, "episode.srt")
	testsupport.WriteSRT(t, subtitle,
		testsupport.Cue{StartMS: 0, EndMS: 2000, Text: "Hello."},
		testsupport.Cue{StartMS: 2000, EndMS: 4000, Text: "Goodbye."},
	)

	clipDir := filepath.Join(base, "clips")
	testsupport.WriteClip(t, clipDir, 1, ".wav", "2.400")
	testsupport.WriteClip(t, clipDir, 2, ".wav", "2.400")

	return &cliTestEnv{baseDir: base, configPath: configPath, clipDir: clipDir, subtitle: subtitle}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
