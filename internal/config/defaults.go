package config

const (
	defaultConfigPath       = "~/.config/montage/config.toml"
	defaultOutputDir        = "~/Videos/montage"
	defaultWorkDir          = "~/.local/share/montage/work"
	defaultLogDir           = "~/.local/share/montage/logs"
	defaultMediaDir         = "~/Videos/montage/media"
	defaultCachePath        = "~/.cache/montage/resolver.json"
	defaultWorkers          = 2
	defaultIsolation        = IsolationProcess
	defaultMemoryFraction   = 0.8
	defaultPlaceholderColor = "#202020"
	defaultSampleRate       = 48000
	defaultVideoCodec       = "libx264"
	defaultAudioCodec       = "aac"
	defaultCRF              = 20
	defaultPreset           = "medium"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

const (
	// IsolationProcess renders each chunk in a child worker process.
	IsolationProcess = "process"
	// IsolationInProcess renders chunks on goroutines of the calling process.
	IsolationInProcess = "inprocess"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			MediaDirs: []string{defaultMediaDir},
			CachePath: defaultCachePath,
		},
		Render: Render{
			Workers:          defaultWorkers,
			Isolation:        defaultIsolation,
			MemoryFraction:   defaultMemoryFraction,
			PlaceholderColor: defaultPlaceholderColor,
			SampleRate:       defaultSampleRate,
		},
		Encoder: Encoder{
			FFmpeg:     "ffmpeg",
			FFprobe:    "ffprobe",
			VideoCodec: defaultVideoCodec,
			AudioCodec: defaultAudioCodec,
			CRF:        defaultCRF,
			Preset:     defaultPreset,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
