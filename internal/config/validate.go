package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	for name, profile := range c.Profiles {
		if profile == nil {
			return fmt.Errorf("profile %q is empty", name)
		}
		if err := profile.validate(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return nil
}

func (p *Profile) validate() error {
	if err := p.Remote.validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := p.Local.validate(); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	return nil
}

func (r *RemoteConfig) validate() error {
	if r.Host == "" {
		return errors.New("host must be set")
	}
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("port %d out of range", r.Port)
	}
	if r.IngestPort < 1 || r.IngestPort > 65535 {
		return fmt.Errorf("ingest_port %d out of range", r.IngestPort)
	}
	if r.PacketSize < 1 {
		return fmt.Errorf("packet_size must be positive, got %d", r.PacketSize)
	}
	return r.Runner.validate()
}

func (r *Runner) validate() error {
	switch r.Type {
	case RunnerFfmpeg:
		if r.Ffmpeg == nil {
			return errors.New("runner.ffmpeg table must be set for type ffmpeg")
		}
		if strings.TrimSpace(r.Ffmpeg.Output) == "" {
			return errors.New("runner.ffmpeg.output must be set")
		}
	case RunnerHeadlessOBS:
		if r.HeadlessOBS == nil {
			return errors.New("runner.headless_obs table must be set for type headless_obs")
		}
		if strings.TrimSpace(r.HeadlessOBS.Binary) == "" {
			return errors.New("runner.headless_obs.binary must be set")
		}
		if strings.TrimSpace(r.HeadlessOBS.Profile) == "" {
			return errors.New("runner.headless_obs.profile must be set")
		}
		if strings.TrimSpace(r.HeadlessOBS.SceneCollection) == "" {
			return errors.New("runner.headless_obs.scene_collection must be set")
		}
	case RunnerCustom:
		if r.Custom == nil || strings.TrimSpace(r.Custom.Command) == "" {
			return errors.New("runner.custom.command must be set for type custom")
		}
	default:
		return fmt.Errorf("unknown runner type %q", r.Type)
	}
	return nil
}

func (l *LocalConfig) validate() error {
	if l.FfmpegPath == "" {
		return errors.New("ffmpeg_path must be set")
	}
	if l.FPS < 1 {
		return fmt.Errorf("fps must be positive, got %d", l.FPS)
	}
	if nice := l.NiceValue(); nice < -20 || nice > 19 {
		return fmt.Errorf("nice %d out of range [-20, 19]", nice)
	}
	if err := l.Capture.validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := l.Encoder.validate(); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if l.Transport != nil {
		if err := l.Transport.validate(); err != nil {
			return fmt.Errorf("transport: %w", err)
		}
	}
	return nil
}

func (c *Capture) validate() error {
	switch c.Type {
	case CaptureAvfoundation:
		if c.Avfoundation == nil {
			return errors.New("avfoundation table must be set for type avfoundation")
		}
		if strings.TrimSpace(c.Avfoundation.VideoDevice) == "" {
			return errors.New("avfoundation.video_device must be set")
		}
	default:
		return fmt.Errorf("unknown capture type %q", c.Type)
	}
	return nil
}

func (e *Encoder) validate() error {
	switch e.Type {
	case EncoderH264VideoToolbox, EncoderHEVCVideoToolbox:
		// Quality and allow_sw are optional; nil variant tables are
		// treated as all-defaults.
		return nil
	case EncoderLibx264:
		if e.Libx264 == nil || strings.TrimSpace(e.Libx264.Preset) == "" {
			return errors.New("libx264.preset must be set for type libx264")
		}
		return nil
	default:
		return fmt.Errorf("unknown encoder type %q", e.Type)
	}
}

func (t *Transport) validate() error {
	switch t.Type {
	case TransportSRT:
		if t.SRT != nil {
			if t.SRT.Port < 0 || t.SRT.Port > 65535 {
				return fmt.Errorf("srt.port %d out of range", t.SRT.Port)
			}
			if t.SRT.PBKeyLen != 0 && t.SRT.PBKeyLen != 16 && t.SRT.PBKeyLen != 24 && t.SRT.PBKeyLen != 32 {
				return fmt.Errorf("srt.pbkeylen must be 16, 24, or 32, got %d", t.SRT.PBKeyLen)
			}
		}
		return nil
	case TransportCustom:
		if t.Custom == nil || strings.TrimSpace(t.Custom.URL) == "" {
			return errors.New("custom.url must be set for type custom")
		}
		return nil
	default:
		return fmt.Errorf("unknown transport type %q", t.Type)
	}
}
