// Package capture builds and launches the local ffmpeg capture/encode
// process.
package capture

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"stream/internal/config"
)

// ErrBinaryNotFound reports that the encoder binary could not be
// resolved via PATH or the filesystem.
var ErrBinaryNotFound = errors.New("encoder binary not found")

// Spec is a fully-resolved local encoder invocation. Building it has
// no side effects; identical inputs produce identical argument lists.
type Spec struct {
	Program string
	Args    []string
	Nice    int
	Preview string
}

// Build resolves the encoder binary and assembles the complete
// argument list for the local capture/encode process.
func Build(local *config.LocalConfig, remote *config.RemoteConfig) (*Spec, error) {
	program, err := resolveBinary(local.FfmpegPath)
	if err != nil {
		return nil, err
	}

	args := []string{"-hide_banner", "-loglevel", "warning"}
	args = append(args,
		"-probesize", strconv.Itoa(local.Probesize),
		"-analyzeduration", strconv.Itoa(local.AnalyzeDuration),
	)

	captureArgs, err := captureFlags(local)
	if err != nil {
		return nil, err
	}
	args = append(args, captureArgs...)

	if chain := filterChain(local); chain != "" {
		args = append(args, "-vf", chain)
	}

	encoderArgs, err := encoderFlags(&local.Encoder, local.Realtime)
	if err != nil {
		return nil, err
	}
	args = append(args, encoderArgs...)

	args = append(args, "-b:v", local.VideoBitrate)
	if local.Maxrate != "" {
		args = append(args, "-maxrate", local.Maxrate)
	}
	if local.Bufsize != "" {
		args = append(args, "-bufsize", local.Bufsize)
	}

	if local.Capture.Avfoundation.AudioEnabled() {
		args = append(args, "-c:a", "aac", "-b:a", local.AudioBitrate)
	} else {
		args = append(args, "-an")
	}

	args = append(args, local.ExtraArgs...)

	target, err := transportURL(local, remote)
	if err != nil {
		return nil, err
	}
	args = append(args, "-f", "mpegts", target)

	spec := &Spec{
		Program: program,
		Args:    args,
		Nice:    local.NiceValue(),
	}
	spec.Preview = preview(spec)
	return spec, nil
}

func resolveBinary(path string) (string, error) {
	if resolved, err := exec.LookPath(path); err == nil {
		return resolved, nil
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	return "", fmt.Errorf("%w: %q (checked PATH and filesystem)", ErrBinaryNotFound, path)
}

func captureFlags(local *config.LocalConfig) ([]string, error) {
	switch local.Capture.Type {
	case config.CaptureAvfoundation:
		av := local.Capture.Avfoundation
		if av == nil {
			return nil, errors.New("avfoundation capture configuration missing")
		}
		queueSize := av.ThreadQueueSize
		if queueSize <= 0 {
			queueSize = 512
		}
		args := []string{
			"-thread_queue_size", strconv.Itoa(queueSize),
			"-f", "avfoundation",
			"-framerate", strconv.Itoa(local.FPS),
			"-pixel_format", av.PixelFormat,
		}
		if av.CursorEnabled() {
			args = append(args, "-capture_cursor", "1")
		}
		if av.CaptureClicks {
			args = append(args, "-capture_mouse_clicks", "1")
		}
		input := av.VideoDevice
		if av.AudioEnabled() {
			input = av.VideoDevice + ":" + av.AudioDevice
		}
		return append(args, "-i", input), nil
	default:
		return nil, fmt.Errorf("unknown capture type %q", local.Capture.Type)
	}
}

// filterChain joins the active filters. An explicit scale filter takes
// precedence over the resolution shorthand.
func filterChain(local *config.LocalConfig) string {
	var parts []string
	switch {
	case local.ScaleFilter != "":
		parts = append(parts, local.ScaleFilter)
	case local.Resolution != "":
		parts = append(parts, "scale="+strings.Replace(local.Resolution, "x", ":", 1))
	}
	parts = append(parts, local.Filters...)
	return strings.Join(parts, ",")
}

func encoderFlags(encoder *config.Encoder, realtime bool) ([]string, error) {
	switch encoder.Type {
	case config.EncoderH264VideoToolbox:
		return videoToolboxFlags("h264_videotoolbox", encoder.H264VideoToolbox, realtime), nil
	case config.EncoderHEVCVideoToolbox:
		return videoToolboxFlags("hevc_videotoolbox", encoder.HEVCVideoToolbox, realtime), nil
	case config.EncoderLibx264:
		cfg := encoder.Libx264
		if cfg == nil {
			return nil, errors.New("libx264 encoder configuration missing")
		}
		args := []string{"-c:v", "libx264", "-preset", cfg.Preset}
		if cfg.Tune != "" {
			args = append(args, "-tune", cfg.Tune)
		}
		// Hardware paths accept the capture pixel format; libx264 needs
		// a standard one.
		return append(args, "-pix_fmt", "yuv420p"), nil
	default:
		return nil, fmt.Errorf("unknown encoder type %q", encoder.Type)
	}
}

func videoToolboxFlags(codec string, cfg *config.VideoToolboxCodec, realtime bool) []string {
	args := []string{"-c:v", codec}
	if cfg != nil && cfg.Quality != "" {
		args = append(args, "-quality", cfg.Quality)
	}
	allowSW := "0"
	if cfg != nil && cfg.AllowSW {
		allowSW = "1"
	}
	args = append(args, "-allow_sw", allowSW)
	rt := "0"
	if realtime {
		rt = "1"
	}
	return append(args, "-realtime", rt)
}

func transportURL(local *config.LocalConfig, remote *config.RemoteConfig) (string, error) {
	transport := local.Transport
	if transport == nil {
		transport = &config.Transport{Type: config.TransportSRT, SRT: &config.SRTTransport{}}
	}
	switch transport.Type {
	case config.TransportCustom:
		if transport.Custom == nil || transport.Custom.URL == "" {
			return "", errors.New("custom transport URL missing")
		}
		return transport.Custom.URL, nil
	case config.TransportSRT:
		srt := transport.SRT
		if srt == nil {
			srt = &config.SRTTransport{}
		}
		host := srt.Host
		if host == "" {
			host = remote.Host
		}
		port := srt.Port
		if port == 0 {
			port = remote.IngestPort
		}
		mode := srt.Mode
		if mode == "" {
			mode = "caller"
		}
		latency := srt.LatencyMS
		if latency == 0 {
			latency = 20
		}
		packetSize := srt.PacketSize
		if packetSize == 0 {
			packetSize = remote.PacketSize
		}

		query := fmt.Sprintf("mode=%s&latency=%d&pkt_size=%d", mode, latency, packetSize)
		if srt.Passphrase != "" {
			query += "&passphrase=" + url.QueryEscape(srt.Passphrase)
		}
		if srt.PBKeyLen > 0 {
			query += fmt.Sprintf("&pbkeylen=%d", srt.PBKeyLen)
		}
		if srt.StreamID != "" {
			query += "&streamid=" + url.QueryEscape(srt.StreamID)
		}
		for _, key := range sortedKeys(srt.Extra) {
			query += fmt.Sprintf("&%s=%s", url.QueryEscape(key), url.QueryEscape(srt.Extra[key]))
		}
		return fmt.Sprintf("srt://%s:%d?%s", host, port, query), nil
	default:
		return "", fmt.Errorf("unknown transport type %q", transport.Type)
	}
}

// preview renders a shell-safe one-line rendition of the invocation
// for dry-run display.
func preview(spec *Spec) string {
	words := make([]string, 0, len(spec.Args)+4)
	if spec.Nice != 0 {
		words = append(words, "nice", "-n", strconv.Itoa(spec.Nice))
	}
	words = append(words, spec.Program)
	words = append(words, spec.Args...)
	return shellquote.Join(words...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
