package capture

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"stream/internal/config"
)

func stubFfmpeg(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub ffmpeg: %v", err)
	}
	return path
}

func testLocal(t *testing.T) *config.LocalConfig {
	t.Helper()
	nice := 10
	return &config.LocalConfig{
		FfmpegPath:   stubFfmpeg(t),
		FPS:          60,
		VideoBitrate: "9000k",
		AudioBitrate: "160k",
		Probesize:    32,
		Nice:         &nice,
		Capture: config.Capture{
			Type: config.CaptureAvfoundation,
			Avfoundation: &config.AvfoundationCapture{
				VideoDevice: "3",
				AudioDevice: "1",
				PixelFormat: "uyvy422",
			},
		},
		Encoder: config.Encoder{
			Type:             config.EncoderH264VideoToolbox,
			H264VideoToolbox: &config.VideoToolboxCodec{Quality: "55"},
		},
	}
}

func testRemote() *config.RemoteConfig {
	return &config.RemoteConfig{
		Host:       "stream.example.com",
		IngestPort: 6000,
		PacketSize: 1316,
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	local := testLocal(t)
	local.Transport = &config.Transport{
		Type: config.TransportSRT,
		SRT: &config.SRTTransport{
			Extra: map[string]string{"rcvbuf": "8192", "maxbw": "0", "oheadbw": "25"},
		},
	}
	remote := testRemote()

	first, err := Build(local, remote)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := Build(local, remote)
	if err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	if !reflect.DeepEqual(first.Args, second.Args) {
		t.Fatalf("argument lists differ between builds:\n%v\n%v", first.Args, second.Args)
	}

	target := first.Args[len(first.Args)-1]
	if !strings.Contains(target, "maxbw=0&oheadbw=25&rcvbuf=8192") {
		t.Fatalf("extra SRT parameters not sorted in %q", target)
	}
}

func TestBuildAssemblesFullPipeline(t *testing.T) {
	local := testLocal(t)
	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	joined := strings.Join(spec.Args, " ")
	for _, want := range []string{
		"-hide_banner",
		"-probesize 32 -analyzeduration 0",
		"-thread_queue_size 512 -f avfoundation -framerate 60 -pixel_format uyvy422 -capture_cursor 1 -i 3:1",
		"-c:v h264_videotoolbox -quality 55 -allow_sw 0 -realtime 0",
		"-b:v 9000k",
		"-c:a aac -b:a 160k",
		"-f mpegts srt://stream.example.com:6000?mode=caller&latency=20&pkt_size=1316",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args: %s", want, joined)
		}
	}
	if spec.Nice != 10 {
		t.Fatalf("expected nice 10, got %d", spec.Nice)
	}
	if !strings.HasPrefix(spec.Preview, "nice -n 10 ") {
		t.Fatalf("preview missing nice prefix: %q", spec.Preview)
	}
}

func TestBuildRealtimeFlag(t *testing.T) {
	local := testLocal(t)
	local.Realtime = true

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(strings.Join(spec.Args, " "), "-allow_sw 0 -realtime 1") {
		t.Fatalf("expected -realtime 1 for realtime profile: %v", spec.Args)
	}
}

func TestBuildThreadQueueSizeOverride(t *testing.T) {
	local := testLocal(t)
	local.Capture.Avfoundation.ThreadQueueSize = 1024

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(strings.Join(spec.Args, " "), "-thread_queue_size 1024") {
		t.Fatalf("expected configured thread queue size: %v", spec.Args)
	}
}

func TestBuildDisablesAudioForNone(t *testing.T) {
	for _, device := range []string{"", "none", "NONE"} {
		local := testLocal(t)
		local.Capture.Avfoundation.AudioDevice = device

		spec, err := Build(local, testRemote())
		if err != nil {
			t.Fatalf("Build failed for device %q: %v", device, err)
		}
		joined := strings.Join(spec.Args, " ")
		if !strings.Contains(joined, "-an") {
			t.Fatalf("expected -an for audio device %q: %s", device, joined)
		}
		if strings.Contains(joined, "-c:a") {
			t.Fatalf("unexpected audio codec for device %q: %s", device, joined)
		}
		if !strings.Contains(joined, "-i 3 ") {
			t.Fatalf("expected video-only input for device %q: %s", device, joined)
		}
	}
}

func TestBuildScaleFilterOverridesResolution(t *testing.T) {
	local := testLocal(t)
	local.Resolution = "1920x1080"
	local.ScaleFilter = "scale=2560:-2:flags=lanczos"
	local.Filters = []string{"format=yuv420p"}

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	joined := strings.Join(spec.Args, " ")
	if !strings.Contains(joined, "-vf scale=2560:-2:flags=lanczos,format=yuv420p") {
		t.Fatalf("expected scale filter precedence: %s", joined)
	}
	if strings.Contains(joined, "scale=1920:1080") {
		t.Fatalf("resolution shorthand should be suppressed: %s", joined)
	}
}

func TestBuildResolutionShorthand(t *testing.T) {
	local := testLocal(t)
	local.Resolution = "1920x1080"

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(strings.Join(spec.Args, " "), "-vf scale=1920:1080") {
		t.Fatalf("expected resolution shorthand scale: %v", spec.Args)
	}
}

func TestBuildLibx264Flags(t *testing.T) {
	local := testLocal(t)
	local.Encoder = config.Encoder{
		Type:    config.EncoderLibx264,
		Libx264: &config.Libx264Codec{Preset: "veryfast", Tune: "zerolatency"},
	}

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	joined := strings.Join(spec.Args, " ")
	if !strings.Contains(joined, "-c:v libx264 -preset veryfast -tune zerolatency -pix_fmt yuv420p") {
		t.Fatalf("unexpected libx264 flags: %s", joined)
	}
}

func TestBuildCustomTransportUsesLiteralURL(t *testing.T) {
	local := testLocal(t)
	local.Transport = &config.Transport{
		Type:   config.TransportCustom,
		Custom: &config.CustomTransport{URL: "rtmp://ingest.example.com/live/key"},
	}

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := spec.Args[len(spec.Args)-1]; got != "rtmp://ingest.example.com/live/key" {
		t.Fatalf("expected literal URL, got %q", got)
	}
}

func TestBuildSRTOverridesAndSecrets(t *testing.T) {
	local := testLocal(t)
	local.Transport = &config.Transport{
		Type: config.TransportSRT,
		SRT: &config.SRTTransport{
			Host:       "edge.example.com",
			Port:       7000,
			LatencyMS:  120,
			Passphrase: "s3cret pass",
			PBKeyLen:   32,
			StreamID:   "publish/main",
		},
	}

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	target := spec.Args[len(spec.Args)-1]
	for _, want := range []string{
		"srt://edge.example.com:7000?",
		"latency=120",
		"passphrase=s3cret+pass",
		"pbkeylen=32",
		"streamid=publish%2Fmain",
	} {
		if !strings.Contains(target, want) {
			t.Fatalf("expected %q in target URL %q", want, target)
		}
	}
}

func TestBuildMissingBinary(t *testing.T) {
	local := testLocal(t)
	local.FfmpegPath = filepath.Join(t.TempDir(), "missing-ffmpeg")

	_, err := Build(local, testRemote())
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestBuildResolvesBinaryFromPath(t *testing.T) {
	dir := filepath.Dir(stubFfmpeg(t))
	t.Setenv("PATH", dir)

	local := testLocal(t)
	local.FfmpegPath = "ffmpeg"

	spec, err := Build(local, testRemote())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if spec.Program != filepath.Join(dir, "ffmpeg") {
		t.Fatalf("expected PATH-resolved program, got %q", spec.Program)
	}
}
