package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Tolerance 100ms")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
}

func TestAdjustPrintsCompressPlan(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"adjust", env.subtitle, "--clips", env.clipDir}, env.configPath)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	requireContains(t, out, "Strategy: compress")
	requireContains(t, out, "diff 800ms")
	requireContains(t, out, "0001.wav")
}

func TestAdjustJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "adjust", env.subtitle, "--clips", env.clipDir}, env.configPath)
	if err != nil {
		t.Fatalf("adjust --json: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if payload["strategy"] != "compress" {
		t.Fatalf("strategy = %v", payload["strategy"])
	}
}

func TestProbeReportsDuration(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"probe", filepath.Join(env.clipDir, "0001.wav")}, env.configPath)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	requireContains(t, out, "2400")
	requireContains(t, out, "pcm_s16le 44100Hz/2ch")
}

func TestProbeMissingFileFails(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"probe", filepath.Join(env.baseDir, "nope.wav")}, env.configPath); err == nil {
		t.Fatal("expected probe of missing file to fail")
	}
}

func TestHistoryListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"history", "show", "abc"}, env.configPath); err == nil {
		t.Fatal("expected show of unknown job to fail")
	}
}

func TestDepsReportsStubToolchain(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "Audio backends: atempo")
}

func TestWorkdirListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"workdir", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("workdir list: %v", err)
	}
	requireContains(t, out, "No job directories")

	jobDir := filepath.Join(env.baseDir, "work", "episode")
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stamp := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(jobDir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	out, _, err = runCLI(t, []string{"workdir", "clean", "--older-than", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("workdir clean: %v", err)
	}
	requireContains(t, out, "Removed 1 director(ies)")
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", jobDir)
	}
}

func TestLogsFiltersBySlot(t *testing.T) {
	env := setupCLITestEnv(t)

	jobID := "0f8c2d7e-1111-4222-8333-944455556666"
	path := filepath.Join(env.baseDir, "logs", "job-"+jobID+".log")
	body := `{"ts":"2026-03-01T10:00:00Z","level":"info","msg":"reconciliation started","job_id":"` + jobID + `"}
{"ts":"2026-03-01T10:00:01Z","level":"warn","msg":"segment failed; substituting silence","slot":2}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", jobID, "--slot", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "[slot 2] segment failed")
	if strings.Contains(out, "reconciliation started") {
		t.Fatalf("expected slot filter to drop unscoped lines: %q", out)
	}

	if _, _, err := runCLI(t, []string{"logs", "deadbeef"}, env.configPath); err == nil {
		t.Fatal("expected missing log to fail")
	}
}
