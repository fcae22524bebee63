// Package ingest runs the remote-side ffmpeg process that listens for
// the incoming SRT stream and turns it into segments, an HLS playlist,
// or a forwarded feed.
package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stream/internal/logging"
)

// stopGrace is how long Stop waits after SIGTERM before killing the
// receiver outright. Var so tests can shorten it.
var stopGrace = 3 * time.Second

// segmentPattern is expanded by ffmpeg's strftime support; the doubled
// percent keeps the sequence placeholder for the segment muxer.
const segmentPattern = "stream-%Y%m%d-%H%M%S-%%03d.ts"

// Mode selects what the receiver does with the incoming stream.
type Mode string

const (
	// ModeSegment writes fixed-duration MPEG-TS segments to disk.
	ModeSegment Mode = "segment"
	// ModeHLS maintains a rolling HLS playlist with a bounded window.
	ModeHLS Mode = "hls"
	// ModeForward relays the stream to an external RTMP ingest.
	ModeForward Mode = "forward"
)

// ParseMode maps a configuration string onto a receiver mode. An empty
// value selects segment output.
func ParseMode(value string) (Mode, error) {
	switch value {
	case "", string(ModeSegment):
		return ModeSegment, nil
	case string(ModeHLS):
		return ModeHLS, nil
	case string(ModeForward):
		return ModeForward, nil
	default:
		return "", fmt.Errorf("unknown receiver mode %q (want segment, hls, or forward)", value)
	}
}

// Options describe one receiver process.
type Options struct {
	// FfmpegPath is the ffmpeg binary to spawn.
	FfmpegPath string
	// SRTPort is the local port the receiver listens on.
	SRTPort int
	// SegmentDir receives segment files (segment and hls modes).
	SegmentDir string
	// SegmentDuration is the target segment length in seconds.
	SegmentDuration int
	// Mode selects the output variant; zero value means segment.
	Mode Mode
	// HLSListSize bounds the rolling playlist in hls mode.
	HLSListSize int
	// ForwardURL is the downstream ingest target in forward mode.
	ForwardURL string
	// ForwardFilters, when set in forward mode, forces a re-encode so
	// the filters can be applied; otherwise the stream is copied.
	ForwardFilters []string
	// Stderr receives ffmpeg's diagnostic output. Defaults to
	// os.Stderr.
	Stderr io.Writer
	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Receiver is a running ffmpeg receiver process.
type Receiver struct {
	cmd    *exec.Cmd
	logger *slog.Logger
	done   chan struct{}
}

// Start spawns the receiver described by opts.
func Start(opts Options) (*Receiver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	args, err := buildArgs(opts)
	if err != nil {
		return nil, err
	}
	if opts.Mode != ModeForward {
		if err := os.MkdirAll(opts.SegmentDir, 0o755); err != nil {
			return nil, fmt.Errorf("create segment directory: %w", err)
		}
	}

	cmd := exec.Command(opts.FfmpegPath, args...)
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", opts.FfmpegPath, err)
	}

	r := &Receiver{cmd: cmd, logger: logger, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Warn("receiver exited", logging.Error(err))
		}
		close(r.done)
	}()

	logger.Info("receiver started",
		logging.Int("pid", cmd.Process.Pid),
		logging.Int("srt_port", opts.SRTPort),
		logging.String("mode", string(modeOrDefault(opts.Mode))))
	return r, nil
}

// Pid reports the receiver's process id.
func (r *Receiver) Pid() int { return r.cmd.Process.Pid }

// Done is closed once the receiver process has exited.
func (r *Receiver) Done() <-chan struct{} { return r.done }

// Stop asks the receiver to exit and waits for it, escalating to
// SIGKILL if it ignores the request.
func (r *Receiver) Stop() {
	if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		<-r.done
		return
	}
	select {
	case <-r.done:
		return
	case <-time.After(stopGrace):
	}
	r.logger.Warn("receiver ignored SIGTERM, killing", logging.Int("pid", r.cmd.Process.Pid))
	_ = r.cmd.Process.Kill()
	<-r.done
}

func modeOrDefault(mode Mode) Mode {
	if mode == "" {
		return ModeSegment
	}
	return mode
}

func buildArgs(opts Options) ([]string, error) {
	if opts.FfmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg path is not configured")
	}
	if opts.SRTPort <= 0 || opts.SRTPort > 65535 {
		return nil, fmt.Errorf("srt port %d is out of range", opts.SRTPort)
	}

	listenURL := fmt.Sprintf("srt://0.0.0.0:%d?mode=listener", opts.SRTPort)
	args := []string{"-hide_banner", "-loglevel", "warning"}

	mode := modeOrDefault(opts.Mode)
	if mode == ModeForward {
		// Keep retrying the downstream ingest instead of dying when it
		// hiccups.
		args = append(args,
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5")
	}
	args = append(args, "-i", listenURL)

	switch mode {
	case ModeSegment:
		if opts.SegmentDir == "" {
			return nil, fmt.Errorf("segment directory is not configured")
		}
		args = append(args,
			"-c", "copy",
			"-f", "segment",
			"-segment_time", strconv.Itoa(opts.SegmentDuration),
			"-segment_format", "mpegts",
			"-strftime", "1",
			"-reset_timestamps", "1",
			filepath.Join(opts.SegmentDir, segmentPattern))
	case ModeHLS:
		if opts.SegmentDir == "" {
			return nil, fmt.Errorf("segment directory is not configured")
		}
		listSize := opts.HLSListSize
		if listSize <= 0 {
			listSize = 6
		}
		args = append(args,
			"-c", "copy",
			"-f", "hls",
			"-hls_time", strconv.Itoa(opts.SegmentDuration),
			"-hls_list_size", strconv.Itoa(listSize),
			"-hls_flags", "delete_segments",
			"-hls_segment_filename", filepath.Join(opts.SegmentDir, "stream-%05d.ts"),
			filepath.Join(opts.SegmentDir, "live.m3u8"))
	case ModeForward:
		if opts.ForwardURL == "" {
			return nil, fmt.Errorf("forward URL is not configured")
		}
		if len(opts.ForwardFilters) > 0 {
			args = append(args,
				"-vf", strings.Join(opts.ForwardFilters, ","),
				"-c:v", "libx264",
				"-preset", "veryfast",
				"-c:a", "aac")
		} else {
			args = append(args, "-c", "copy")
		}
		args = append(args, "-f", "flv", opts.ForwardURL)
	default:
		return nil, fmt.Errorf("unknown receiver mode %q", mode)
	}
	return args, nil
}
