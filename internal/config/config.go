package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tools names the external media toolchain binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Timeline contains the timeline adjustment knobs.
type Timeline struct {
	// PreserveTotal keeps the subtitle track's total duration fixed.
	PreserveTotal bool `toml:"preserve_total"`
	// ToleranceMS is the maximum acceptable deviation from the target total.
	ToleranceMS int `toml:"tolerance_ms"`
	// MinClipMS is the floor below which a clip is never sped up.
	MinClipMS int `toml:"min_clip_ms"`
	// WarnSpeedup logs a warning when the uniform speedup ratio exceeds it.
	WarnSpeedup float64 `toml:"warn_speedup"`
}

// Transform contains segment transformation settings.
type Transform struct {
	Workers               int      `toml:"workers"`
	CorrectionToleranceMS int      `toml:"correction_tolerance_ms"`
	TimeoutFloorSeconds   int      `toml:"timeout_floor_seconds"`
	TimeoutPerClipSecond  int      `toml:"timeout_per_clip_second"`
	AudioSampleRate       int      `toml:"audio_sample_rate"`
	AudioChannels         int      `toml:"audio_channels"`
	AudioBackends         []string `toml:"audio_backends"`
	HardwareEncoding      bool     `toml:"hardware_encoding"`
	VideoCRF              int      `toml:"video_crf"`
	VideoPreset           string   `toml:"video_preset"`
	DefaultFrameRate      float64  `toml:"default_frame_rate"`
	FailFast              bool     `toml:"fail_fast"`
}

// Mux contains settings for the muxed video deliverable.
type Mux struct {
	// Mode is replace, mix, or remove. Mix keeps the source audio under the
	// dub; remove writes a video without audio.
	Mode string `toml:"mode"`
	// OriginalVolume scales the source audio in mix mode.
	OriginalVolume float64 `toml:"original_volume"`
	// EmbedSubtitles adds the adjusted subtitles as a soft subtitle stream.
	EmbedSubtitles bool `toml:"embed_subtitles"`
}

// History contains configuration for the run history ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dubsync.
//
// Configuration sections by subsystem:
//   - Paths: work, output, and log directories
//   - Tools: ffmpeg/ffprobe binaries
//   - Timeline: tolerance and speedup policy for the adjuster
//   - Transform: worker pool, timeouts, audio format, encoder backends
//   - Mux: audio mode and subtitle embedding for video deliverables
//   - History: sqlite run ledger
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	Timeline  Timeline  `toml:"timeline"`
	Transform Transform `toml:"transform"`
	Mux       Mux       `toml:"mux"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a reconciliation job writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for transformation and assembly.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFmpeg); bin != "" {
		return bin
	}
	return defaultFFmpeg
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFprobe); bin != "" {
		return bin
	}
	return defaultFFprobe
}

// Tolerance returns the timeline tolerance as a duration.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.Timeline.ToleranceMS) * time.Millisecond
}

// MinClip returns the speedup floor as a duration.
func (c *Config) MinClip() time.Duration {
	return time.Duration(c.Timeline.MinClipMS) * time.Millisecond
}

// CorrectionTolerance returns the per-segment post-transform tolerance.
func (c *Config) CorrectionTolerance() time.Duration {
	return time.Duration(c.Transform.CorrectionToleranceMS) * time.Millisecond
}

// InvocationTimeout returns the timeout for one toolchain call on a clip of
// the given length: proportional to the clip with a fixed floor.
func (c *Config) InvocationTimeout(clip time.Duration) time.Duration {
	floor := time.Duration(c.Transform.TimeoutFloorSeconds) * time.Second
	scaled := time.Duration(float64(c.Transform.TimeoutPerClipSecond) * clip.Seconds() * float64(time.Second))
	if scaled > floor {
		return scaled
	}
	return floor
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
