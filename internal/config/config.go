package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for the local CLI.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root of the stream configuration file.
type Config struct {
	DefaultProfile string              `toml:"default_profile"`
	Paths          Paths               `toml:"paths"`
	Logging        Logging             `toml:"logging"`
	Profiles       map[string]*Profile `toml:"profiles"`
}

// Profile bundles the remote receiver and local encoder settings for
// one named streaming target.
type Profile struct {
	Description string       `toml:"description"`
	Remote      RemoteConfig `toml:"remote"`
	Local       LocalConfig  `toml:"local"`
}

// RemoteConfig describes the receiver host and the process that runs
// there inside the tmux session.
type RemoteConfig struct {
	Host        string `toml:"host"`
	User        string `toml:"user"`
	Port        int    `toml:"port"`
	TmuxSession string `toml:"tmux_session"`
	IngestPort  int    `toml:"ingest_port"`
	PacketSize  int    `toml:"packet_size"`
	LogPath     string `toml:"log_path"`
	Runner      Runner `toml:"runner"`
}

// LocalConfig describes the local capture and encode process.
type LocalConfig struct {
	FfmpegPath      string     `toml:"ffmpeg_path"`
	FPS             int        `toml:"fps"`
	Resolution      string     `toml:"resolution"`
	VideoBitrate    string     `toml:"video_bitrate"`
	Maxrate         string     `toml:"maxrate"`
	Bufsize         string     `toml:"bufsize"`
	AudioBitrate    string     `toml:"audio_bitrate"`
	ScaleFilter     string     `toml:"scale_filter"`
	Filters         []string   `toml:"filters"`
	Capture         Capture    `toml:"capture"`
	Encoder         Encoder    `toml:"encoder"`
	Transport       *Transport `toml:"transport"`
	ExtraArgs       []string   `toml:"extra_args"`
	Nice            *int       `toml:"nice"`
	Realtime        bool       `toml:"realtime"`
	Probesize       int        `toml:"probesize"`
	AnalyzeDuration int        `toml:"analyzeduration"`
}

// CaptureKind discriminates capture source variants.
type CaptureKind string

const (
	CaptureAvfoundation CaptureKind = "avfoundation"
)

// Capture is a closed union of capture source variants. Exactly the
// variant matching Type is populated after a successful Load.
type Capture struct {
	Type         CaptureKind          `toml:"type"`
	Avfoundation *AvfoundationCapture `toml:"avfoundation"`
}

// AvfoundationCapture configures macOS AVFoundation screen/audio capture.
type AvfoundationCapture struct {
	VideoDevice     string `toml:"video_device"`
	AudioDevice     string `toml:"audio_device"`
	PixelFormat     string `toml:"pixel_format"`
	CaptureCursor   *bool  `toml:"capture_cursor"`
	CaptureClicks   bool   `toml:"capture_clicks"`
	ThreadQueueSize int    `toml:"thread_queue_size"`
}

// CursorEnabled reports whether cursor capture is on (default true).
func (a *AvfoundationCapture) CursorEnabled() bool {
	if a == nil || a.CaptureCursor == nil {
		return true
	}
	return *a.CaptureCursor
}

// AudioEnabled reports whether an audio device is configured. The
// literal value "none" disables audio like an absent device does.
func (a *AvfoundationCapture) AudioEnabled() bool {
	if a == nil {
		return false
	}
	device := strings.TrimSpace(a.AudioDevice)
	return device != "" && !strings.EqualFold(device, "none")
}

// EncoderKind discriminates encoder variants.
type EncoderKind string

const (
	EncoderH264VideoToolbox EncoderKind = "h264_videotoolbox"
	EncoderHEVCVideoToolbox EncoderKind = "hevc_videotoolbox"
	EncoderLibx264          EncoderKind = "libx264"
)

// Encoder is a closed union of encoder variants.
type Encoder struct {
	Type             EncoderKind        `toml:"type"`
	H264VideoToolbox *VideoToolboxCodec `toml:"h264_videotoolbox"`
	HEVCVideoToolbox *VideoToolboxCodec `toml:"hevc_videotoolbox"`
	Libx264          *Libx264Codec      `toml:"libx264"`
}

// VideoToolboxCodec holds hardware encoder tuning.
type VideoToolboxCodec struct {
	Quality string `toml:"quality"`
	AllowSW bool   `toml:"allow_sw"`
}

// Libx264Codec holds software encoder tuning.
type Libx264Codec struct {
	Preset string `toml:"preset"`
	Tune   string `toml:"tune"`
}

// TransportKind discriminates transport variants.
type TransportKind string

const (
	TransportSRT    TransportKind = "srt"
	TransportCustom TransportKind = "custom"
)

// Transport is a closed union of transport variants.
type Transport struct {
	Type   TransportKind    `toml:"type"`
	SRT    *SRTTransport    `toml:"srt"`
	Custom *CustomTransport `toml:"custom"`
}

// SRTTransport configures the SRT caller connection. Host and Port
// fall back to the remote config when unset.
type SRTTransport struct {
	Host       string            `toml:"host"`
	Port       int               `toml:"port"`
	Mode       string            `toml:"mode"`
	LatencyMS  int               `toml:"latency_ms"`
	PacketSize int               `toml:"packet_size"`
	Passphrase string            `toml:"passphrase"`
	PBKeyLen   int               `toml:"pbkeylen"`
	StreamID   string            `toml:"stream_id"`
	Extra      map[string]string `toml:"extra"`
}

// CustomTransport carries a literal output URL.
type CustomTransport struct {
	URL string `toml:"url"`
}

// NiceValue returns the configured nice priority, defaulting to a low
// priority so the encoder does not starve interactive work.
func (l *LocalConfig) NiceValue() int {
	if l.Nice == nil {
		return defaultNice
	}
	return *l.Nice
}

// RunnerKind discriminates remote runner variants.
type RunnerKind string

const (
	RunnerFfmpeg      RunnerKind = "ffmpeg"
	RunnerHeadlessOBS RunnerKind = "headless_obs"
	RunnerCustom      RunnerKind = "custom"
)

// Runner is a closed union of remote runner variants.
type Runner struct {
	Type        RunnerKind    `toml:"type"`
	Ffmpeg      *FfmpegRunner `toml:"ffmpeg"`
	HeadlessOBS *OBSRunner    `toml:"headless_obs"`
	Custom      *CustomRunner `toml:"custom"`
}

// FfmpegRunner receives the transport stream with ffmpeg and writes
// it out with codec copy.
type FfmpegRunner struct {
	FfmpegPath string   `toml:"ffmpeg_path"`
	Format     string   `toml:"format"`
	Output     string   `toml:"output"`
	CopyVideo  *bool    `toml:"copy_video"`
	CopyAudio  *bool    `toml:"copy_audio"`
	ExtraArgs  []string `toml:"extra_args"`
}

// VideoCopyEnabled reports whether video passthrough is on (default true).
func (r *FfmpegRunner) VideoCopyEnabled() bool {
	return r == nil || r.CopyVideo == nil || *r.CopyVideo
}

// AudioCopyEnabled reports whether audio passthrough is on (default true).
func (r *FfmpegRunner) AudioCopyEnabled() bool {
	return r == nil || r.CopyAudio == nil || *r.CopyAudio
}

// OBSRunner launches a GUI-less compositor on the remote host.
type OBSRunner struct {
	Binary          string            `toml:"binary"`
	Profile         string            `toml:"profile"`
	SceneCollection string            `toml:"scene_collection"`
	ExtraArgs       []string          `toml:"extra_args"`
	Env             map[string]string `toml:"env"`
	Xvfb            bool              `toml:"xvfb"`
}

// CustomRunner runs a literal user-supplied command.
type CustomRunner struct {
	Command string `toml:"command"`
}

// Profile resolves a profile by name, or the default profile when the
// name is empty.
func (c *Config) Profile(name string) (string, *Profile, error) {
	resolved := strings.TrimSpace(name)
	if resolved == "" {
		resolved = c.DefaultProfile
	}
	profile, ok := c.Profiles[resolved]
	if !ok || profile == nil {
		return "", nil, fmt.Errorf("profile %q not found in config", resolved)
	}
	return resolved, profile, nil
}

// SessionFile returns the path of the durable session record.
func (c *Config) SessionFile() string {
	return filepath.Join(c.Paths.StateDir, "session.json")
}

// DefaultConfigPath returns the absolute path of the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stream/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded and defaults applied.
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
	projectPath, err := filepath.Abs("stream.toml")
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

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the embedded sample configuration to path.
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
