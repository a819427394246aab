package config

const (
	defaultLibraryDir            = "~/.local/share/snapback/organized"
	defaultCacheDir              = "~/.local/share/snapback/raw"
	defaultScratchDir            = "~/.local/share/snapback/scratch"
	defaultLogDir                = "~/.local/share/snapback/logs"
	defaultDatabasePath          = "~/.local/share/snapback/manifests/snapback.db"
	defaultNetworkTimeoutSeconds = 120
	defaultRetryAttempts         = 3
	defaultWorkers               = 4
	defaultFFmpegBin             = "ffmpeg"
	defaultFFprobeBin            = "ffprobe"
	defaultFlattenTimeoutSecs    = 600
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir:   defaultLibraryDir,
			CacheDir:     defaultCacheDir,
			ScratchDir:   defaultScratchDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Network: Network{
			TimeoutSeconds: defaultNetworkTimeoutSeconds,
			RetryAttempts:  defaultRetryAttempts,
		},
		Ingest: Ingest{
			Workers: defaultWorkers,
		},
		FFmpeg: FFmpeg{
			FFmpegBin:             defaultFFmpegBin,
			FFprobeBin:            defaultFFprobeBin,
			FlattenTimeoutSeconds: defaultFlattenTimeoutSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
