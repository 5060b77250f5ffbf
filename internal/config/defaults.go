package config

import "runtime"

const (
	defaultWorkDir               = "~/.local/share/dubsync/work"
	defaultOutputDir             = "~/dubsync"
	defaultLogDir                = "~/.local/share/dubsync/logs"
	defaultHistoryFile           = "history.db"
	defaultFFmpeg                = "ffmpeg"
	defaultFFprobe               = "ffprobe"
	defaultToleranceMS           = 100
	defaultMinClipMS             = 40
	defaultWarnSpeedup           = 1.5
	defaultCorrectionToleranceMS = 10
	defaultTimeoutFloorSeconds   = 60
	defaultTimeoutPerClipSecond  = 10
	defaultAudioSampleRate       = 44100
	defaultAudioChannels         = 2
	defaultVideoCRF              = 20
	defaultVideoPreset           = "fast"
	defaultFrameRate             = 30.0
	defaultMuxMode               = "replace"
	defaultOriginalVolume        = 0.3
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

var defaultAudioBackends = []string{"rubberband", "atempo"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Timeline: Timeline{
			PreserveTotal: true,
			ToleranceMS:   defaultToleranceMS,
			MinClipMS:     defaultMinClipMS,
			WarnSpeedup:   defaultWarnSpeedup,
		},
		Transform: Transform{
			Workers:               defaultWorkers(),
			CorrectionToleranceMS: defaultCorrectionToleranceMS,
			TimeoutFloorSeconds:   defaultTimeoutFloorSeconds,
			TimeoutPerClipSecond:  defaultTimeoutPerClipSecond,
			AudioSampleRate:       defaultAudioSampleRate,
			AudioChannels:         defaultAudioChannels,
			AudioBackends:         append([]string(nil), defaultAudioBackends...),
			VideoCRF:              defaultVideoCRF,
			VideoPreset:           defaultVideoPreset,
			DefaultFrameRate:      defaultFrameRate,
		},
		Mux: Mux{
			Mode:           defaultMuxMode,
			OriginalVolume: defaultOriginalVolume,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		return 1
	}
	return n
}
