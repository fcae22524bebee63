package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func stubFfmpeg(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub ffmpeg: %v", err)
	}
	return path
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"":        ModeSegment,
		"segment": ModeSegment,
		"hls":     ModeHLS,
		"forward": ModeForward,
	}
	for input, want := range cases {
		got, err := ParseMode(input)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseMode("mp4"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestBuildArgsSegmentMode(t *testing.T) {
	args, err := buildArgs(Options{
		FfmpegPath:      "ffmpeg",
		SRTPort:         6000,
		SegmentDir:      "/var/lib/stream/segments",
		SegmentDuration: 60,
	})
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i srt://0.0.0.0:6000?mode=listener",
		"-c copy",
		"-f segment",
		"-segment_time 60",
		"-segment_format mpegts",
		"-strftime 1",
		"-reset_timestamps 1",
		"/var/lib/stream/segments/stream-%Y%m%d-%H%M%S-%%03d.ts",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestBuildArgsHLSMode(t *testing.T) {
	args, err := buildArgs(Options{
		FfmpegPath:      "ffmpeg",
		SRTPort:         6000,
		SegmentDir:      "/srv/hls",
		SegmentDuration: 4,
		Mode:            ModeHLS,
		HLSListSize:     10,
	})
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-f hls",
		"-hls_time 4",
		"-hls_list_size 10",
		"-hls_flags delete_segments",
		"/srv/hls/live.m3u8",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestBuildArgsForwardCopiesByDefault(t *testing.T) {
	args, err := buildArgs(Options{
		FfmpegPath: "ffmpeg",
		SRTPort:    6000,
		Mode:       ModeForward,
		ForwardURL: "rtmp://ingest.example.com/live/key",
	})
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-reconnect 1",
		"-reconnect_delay_max 5",
		"-c copy",
		"-f flv rtmp://ingest.example.com/live/key",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "libx264") {
		t.Errorf("copy forward should not re-encode: %s", joined)
	}
}

func TestBuildArgsForwardReencodesWithFilters(t *testing.T) {
	args, err := buildArgs(Options{
		FfmpegPath:     "ffmpeg",
		SRTPort:        6000,
		Mode:           ModeForward,
		ForwardURL:     "rtmp://ingest.example.com/live/key",
		ForwardFilters: []string{"scale=1280:720", "fps=30"},
	})
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-vf scale=1280:720,fps=30",
		"-c:v libx264",
		"-preset veryfast",
		"-c:a aac",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestBuildArgsValidation(t *testing.T) {
	if _, err := buildArgs(Options{SRTPort: 6000}); err == nil {
		t.Error("expected error for missing ffmpeg path")
	}
	if _, err := buildArgs(Options{FfmpegPath: "ffmpeg", SRTPort: 0}); err == nil {
		t.Error("expected error for missing port")
	}
	if _, err := buildArgs(Options{FfmpegPath: "ffmpeg", SRTPort: 6000, SegmentDir: ""}); err == nil {
		t.Error("expected error for missing segment dir")
	}
	if _, err := buildArgs(Options{FfmpegPath: "ffmpeg", SRTPort: 6000, Mode: ModeForward}); err == nil {
		t.Error("expected error for missing forward URL")
	}
}

func TestStartStop(t *testing.T) {
	ffmpeg := stubFfmpeg(t, `trap 'exit 0' TERM
sleep 30 &
wait $!`)
	recv, err := Start(Options{
		FfmpegPath:      ffmpeg,
		SRTPort:         6000,
		SegmentDir:      filepath.Join(t.TempDir(), "segments"),
		SegmentDuration: 60,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := recv.Pid()
	if pid <= 0 {
		t.Fatalf("bad pid %d", pid)
	}

	done := make(chan struct{})
	go func() {
		recv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// The process must really be gone.
	if err := syscall.Kill(pid, 0); err == nil {
		t.Fatalf("pid %d still alive after Stop", pid)
	}
}

func TestStartStopEscalatesToKill(t *testing.T) {
	old := stopGrace
	stopGrace = 100 * time.Millisecond
	t.Cleanup(func() { stopGrace = old })

	ffmpeg := stubFfmpeg(t, `trap '' TERM
sleep 30 &
wait $!`)
	recv, err := Start(Options{
		FfmpegPath:      ffmpeg,
		SRTPort:         6000,
		SegmentDir:      filepath.Join(t.TempDir(), "segments"),
		SegmentDuration: 60,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	recv.Stop()
	select {
	case <-recv.Done():
	default:
		t.Fatal("receiver still running after escalated Stop")
	}
}

func TestStartCreatesSegmentDir(t *testing.T) {
	ffmpeg := stubFfmpeg(t, "exit 0")
	dir := filepath.Join(t.TempDir(), "nested", "segments")
	recv, err := Start(Options{
		FfmpegPath:      ffmpeg,
		SRTPort:         6000,
		SegmentDir:      dir,
		SegmentDuration: 60,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-recv.Done()
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("segment dir not created: %v", err)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(Options{
		FfmpegPath:      filepath.Join(t.TempDir(), "no-such-ffmpeg"),
		SRTPort:         6000,
		SegmentDir:      t.TempDir(),
		SegmentDuration: 60,
	})
	if err == nil {
		t.Fatal("expected spawn error")
	}
}
