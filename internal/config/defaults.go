package config

const (
	defaultProfileName      = "main"
	defaultStateDir         = "~/.local/state/stream"
	defaultLogDir           = "~/.local/share/stream/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultTmuxSession      = "streamd"
	defaultIngestPort       = 6000
	defaultPacketSize       = 1316
	defaultRunnerFormat     = "mpegts"
	defaultRunnerOutput     = "~/stream/current.ts"
	defaultFPS              = 60
	defaultVideoBitrate     = "9000k"
	defaultAudioBitrate     = "160k"
	defaultPixelFormat      = "uyvy422"
	defaultSRTMode          = "caller"
	defaultSRTLatencyMS     = 20
	defaultNice             = 10
	defaultProbesize        = 32
	defaultAnalyzeDuration  = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DefaultProfile: defaultProfileName,
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Profiles: map[string]*Profile{},
	}
}
