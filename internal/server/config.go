package server

import (
	"fmt"
	"os"
	"strconv"

	"stream/internal/blobstore"
	"stream/internal/ingest"
)

// Config is the receiver daemon's runtime configuration, read from the
// environment so the systemd unit (or container) stays the single
// source of truth.
type Config struct {
	// SRTPort is the port the ffmpeg receiver listens on.
	SRTPort int
	// SegmentDir holds finished segments awaiting upload.
	SegmentDir string
	// SegmentDuration is the target segment length in seconds.
	SegmentDuration int
	// S3Bucket names the upload target; empty disables uploads.
	S3Bucket string
	// S3Prefix is prepended to every object key.
	S3Prefix string
	// APIPort is the HTTP control API port.
	APIPort int
	// DeleteAfterUpload removes local segments once uploaded.
	DeleteAfterUpload bool
	// FfmpegPath is the receiver binary.
	FfmpegPath string
	// ReceiverMode selects segment, hls, or forward output.
	ReceiverMode ingest.Mode
	// HLSListSize bounds the rolling playlist in hls mode.
	HLSListSize int
	// ForwardURL is the downstream ingest in forward mode.
	ForwardURL string

	// Object store connection details.
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
}

// Defaults returns the configuration used when no environment
// overrides are present.
func Defaults() Config {
	return Config{
		SRTPort:           6000,
		SegmentDir:        "/root/stream/segments",
		SegmentDuration:   60,
		S3Prefix:          "stream",
		APIPort:           8080,
		DeleteAfterUpload: true,
		FfmpegPath:        "ffmpeg",
		ReceiverMode:      ingest.ModeSegment,
		S3Region:          "us-east-1",
		S3UseSSL:          true,
	}
}

// LoadFromEnv builds the configuration from Defaults overlaid with
// environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Defaults()

	var err error
	if cfg.SRTPort, err = envInt("SRT_PORT", cfg.SRTPort); err != nil {
		return Config{}, err
	}
	if value := os.Getenv("SEGMENT_DIR"); value != "" {
		cfg.SegmentDir = value
	}
	if cfg.SegmentDuration, err = envInt("SEGMENT_DURATION", cfg.SegmentDuration); err != nil {
		return Config{}, err
	}
	if value := os.Getenv("S3_BUCKET"); value != "" {
		cfg.S3Bucket = value
	}
	if value := os.Getenv("S3_PREFIX"); value != "" {
		cfg.S3Prefix = value
	}
	if cfg.APIPort, err = envInt("API_PORT", cfg.APIPort); err != nil {
		return Config{}, err
	}
	if value := os.Getenv("DELETE_AFTER_UPLOAD"); value != "" {
		cfg.DeleteAfterUpload = value == "true" || value == "1"
	}
	if value := os.Getenv("FFMPEG_PATH"); value != "" {
		cfg.FfmpegPath = value
	}
	if value := os.Getenv("RECEIVER_MODE"); value != "" {
		mode, err := ingest.ParseMode(value)
		if err != nil {
			return Config{}, err
		}
		cfg.ReceiverMode = mode
	}
	if cfg.HLSListSize, err = envInt("HLS_LIST_SIZE", cfg.HLSListSize); err != nil {
		return Config{}, err
	}
	if value := os.Getenv("FORWARD_URL"); value != "" {
		cfg.ForwardURL = value
	}

	if value := os.Getenv("S3_ENDPOINT"); value != "" {
		cfg.S3Endpoint = value
	}
	if value := os.Getenv("S3_REGION"); value != "" {
		cfg.S3Region = value
	}
	if value := os.Getenv("S3_ACCESS_KEY"); value != "" {
		cfg.S3AccessKey = value
	}
	if value := os.Getenv("S3_SECRET_KEY"); value != "" {
		cfg.S3SecretKey = value
	}
	if value := os.Getenv("S3_USE_SSL"); value != "" {
		cfg.S3UseSSL = value == "true" || value == "1"
	}
	return cfg, nil
}

// BlobConfig maps the server configuration onto the object store
// client's settings.
func (c Config) BlobConfig() blobstore.Config {
	return blobstore.Config{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		Bucket:    c.S3Bucket,
		Prefix:    c.S3Prefix,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		UseSSL:    c.S3UseSSL,
	}
}

func envInt(name string, fallback int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, nil
}
