package config

import (
	"errors"
	"fmt"
)

var knownAudioBackends = map[string]struct{}{
	"rubberband": {},
	"atempo":     {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validateTransform(); err != nil {
		return err
	}
	if err := c.validateMux(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTimeline() error {
	if c.Timeline.ToleranceMS <= 0 {
		return errors.New("timeline.tolerance_ms must be positive")
	}
	if c.Timeline.MinClipMS < 0 {
		return errors.New("timeline.min_clip_ms must be zero or positive")
	}
	if c.Timeline.WarnSpeedup != 0 && c.Timeline.WarnSpeedup <= 1 {
		return errors.New("timeline.warn_speedup must be greater than 1")
	}
	return nil
}

func (c *Config) validateTransform() error {
	t := c.Transform
	if t.CorrectionToleranceMS <= 0 {
		return errors.New("transform.correction_tolerance_ms must be positive")
	}
	if t.CorrectionToleranceMS > c.Timeline.ToleranceMS {
		return fmt.Errorf("transform.correction_tolerance_ms (%d) must not exceed timeline.tolerance_ms (%d)", t.CorrectionToleranceMS, c.Timeline.ToleranceMS)
	}
	if t.TimeoutFloorSeconds <= 0 {
		return errors.New("transform.timeout_floor_seconds must be positive")
	}
	if t.TimeoutPerClipSecond < 0 {
		return errors.New("transform.timeout_per_clip_second must be zero or positive")
	}
	if t.AudioSampleRate < 8000 || t.AudioSampleRate > 192000 {
		return fmt.Errorf("transform.audio_sample_rate %d out of range", t.AudioSampleRate)
	}
	if t.AudioChannels < 1 || t.AudioChannels > 8 {
		return fmt.Errorf("transform.audio_channels %d out of range", t.AudioChannels)
	}
	for _, name := range t.AudioBackends {
		if _, ok := knownAudioBackends[name]; !ok {
			return fmt.Errorf("transform.audio_backends: unsupported backend %q", name)
		}
	}
	if t.VideoCRF < 0 || t.VideoCRF > 63 {
		return errors.New("transform.video_crf must be between 0 and 63")
	}
	return nil
}

func (c *Config) validateMux() error {
	switch c.Mux.Mode {
	case "replace", "mix", "remove":
	default:
		return fmt.Errorf("mux.mode: unsupported value %q", c.Mux.Mode)
	}
	if c.Mux.OriginalVolume < 0 || c.Mux.OriginalVolume > 2 {
		return fmt.Errorf("mux.original_volume %.2f out of range", c.Mux.OriginalVolume)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
