package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.DefaultProfile = strings.TrimSpace(c.DefaultProfile)
	if c.DefaultProfile == "" {
		c.DefaultProfile = defaultProfileName
	}
	for name, profile := range c.Profiles {
		if profile == nil {
			continue
		}
		if err := profile.normalize(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (p *Profile) normalize() error {
	if err := p.Remote.normalize(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := p.Local.normalize(); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	return nil
}

func (r *RemoteConfig) normalize() error {
	r.Host = strings.TrimSpace(r.Host)
	r.User = strings.TrimSpace(r.User)
	r.TmuxSession = strings.TrimSpace(r.TmuxSession)
	if r.TmuxSession == "" {
		r.TmuxSession = defaultTmuxSession
	}
	if r.IngestPort == 0 {
		r.IngestPort = defaultIngestPort
	}
	if r.PacketSize == 0 {
		r.PacketSize = defaultPacketSize
	}
	r.Runner.normalize()
	return nil
}

func (r *Runner) normalize() {
	if r.Type == "" {
		r.Type = RunnerFfmpeg
	}
	if r.Type == RunnerFfmpeg && r.Ffmpeg == nil {
		r.Ffmpeg = &FfmpegRunner{}
	}
	if r.Ffmpeg != nil {
		if strings.TrimSpace(r.Ffmpeg.Format) == "" {
			r.Ffmpeg.Format = defaultRunnerFormat
		}
		if strings.TrimSpace(r.Ffmpeg.Output) == "" {
			r.Ffmpeg.Output = defaultRunnerOutput
		}
	}
}

func (l *LocalConfig) normalize() error {
	var err error
	l.FfmpegPath = strings.TrimSpace(l.FfmpegPath)
	if strings.HasPrefix(l.FfmpegPath, "~") {
		if l.FfmpegPath, err = expandPath(l.FfmpegPath); err != nil {
			return fmt.Errorf("ffmpeg_path: %w", err)
		}
	}
	if l.FPS == 0 {
		l.FPS = defaultFPS
	}
	if strings.TrimSpace(l.VideoBitrate) == "" {
		l.VideoBitrate = defaultVideoBitrate
	}
	if strings.TrimSpace(l.AudioBitrate) == "" {
		l.AudioBitrate = defaultAudioBitrate
	}
	if l.Probesize == 0 {
		l.Probesize = defaultProbesize
	}
	if l.AnalyzeDuration < 0 {
		l.AnalyzeDuration = defaultAnalyzeDuration
	}
	l.Capture.normalize()
	l.normalizeTransport()
	return nil
}

func (c *Capture) normalize() {
	if c.Type == "" {
		c.Type = CaptureAvfoundation
	}
	if c.Type == CaptureAvfoundation && c.Avfoundation == nil {
		c.Avfoundation = &AvfoundationCapture{}
	}
	if c.Avfoundation != nil {
		if strings.TrimSpace(c.Avfoundation.PixelFormat) == "" {
			c.Avfoundation.PixelFormat = defaultPixelFormat
		}
	}
}

func (l *LocalConfig) normalizeTransport() {
	if l.Transport == nil {
		return
	}
	if l.Transport.Type == "" {
		l.Transport.Type = TransportSRT
	}
	if l.Transport.Type == TransportSRT {
		if l.Transport.SRT == nil {
			l.Transport.SRT = &SRTTransport{}
		}
		srt := l.Transport.SRT
		if strings.TrimSpace(srt.Mode) == "" {
			srt.Mode = defaultSRTMode
		}
		if srt.LatencyMS == 0 {
			srt.LatencyMS = defaultSRTLatencyMS
		}
		if srt.PacketSize == 0 {
			srt.PacketSize = defaultPacketSize
		}
	}
}
