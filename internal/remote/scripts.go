package remote

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"stream/internal/config"
)

// runnerEOF delimits the inner runner script heredoc. Quoted so the
// runner body is written verbatim and expands only when it executes.
const runnerEOF = "STREAM_RUNNER_EOF"

// RenderStart returns the handle for the remote session and an
// idempotent script that starts it. Running the script against an
// already-running session is a no-op with exit 0.
func RenderStart(remote *config.RemoteConfig) (Handle, string, error) {
	handle := NewHandle(remote)
	runner, err := renderRunner(remote)
	if err != nil {
		return Handle{}, "", err
	}
	if strings.Contains(runner, runnerEOF) {
		return Handle{}, "", fmt.Errorf("runner command must not contain %q", runnerEOF)
	}

	session := shellquote.Join(handle.TmuxSession)
	runnerPath := fmt.Sprintf("$HOME/.cache/stream/%s-runner.sh", handle.TmuxSession)

	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("set -euo pipefail\n")
	fmt.Fprintf(&b, "if tmux has-session -t %s 2>/dev/null; then\n", session)
	b.WriteString("  exit 0\n")
	b.WriteString("fi\n")
	fmt.Fprintf(&b, "mkdir -p \"$HOME/.cache/stream\"\n")
	fmt.Fprintf(&b, "cat > \"%s\" <<'%s'\n", runnerPath, runnerEOF)
	b.WriteString(runner)
	fmt.Fprintf(&b, "%s\n", runnerEOF)
	fmt.Fprintf(&b, "chmod +x \"%s\"\n", runnerPath)
	fmt.Fprintf(&b, "tmux new-session -d -s %s \"%s\"\n", session, runnerPath)
	return handle, b.String(), nil
}

// RenderStop returns an idempotent script that interrupts and then
// kills the session, succeeding even when it is already gone.
func RenderStop(handle Handle) string {
	session := shellquote.Join(handle.TmuxSession)
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("set -euo pipefail\n")
	fmt.Fprintf(&b, "if tmux has-session -t %s 2>/dev/null; then\n", session)
	fmt.Fprintf(&b, "  tmux send-keys -t %s C-c\n", session)
	b.WriteString("  sleep 2\n")
	fmt.Fprintf(&b, "  tmux kill-session -t %s 2>/dev/null || true\n", session)
	b.WriteString("fi\n")
	return b.String()
}

// RenderStatus returns a script whose exit status reports whether the
// session exists.
func RenderStatus(handle Handle) string {
	return fmt.Sprintf("#!/usr/bin/env bash\ntmux has-session -t %s 2>/dev/null\n", shellquote.Join(handle.TmuxSession))
}

// renderRunner builds the inner runner script for the configured
// runner variant. The final line execs the runner command so the
// process replaces the wrapper shell.
func renderRunner(remote *config.RemoteConfig) (string, error) {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("set -euo pipefail\n")
	if logPath := strings.TrimSpace(remote.LogPath); logPath != "" {
		// Redirect before exec so the log captures from the first line.
		fmt.Fprintf(&b, "exec >>%s 2>&1\n", remoteShellPath(logPath))
	}

	runner := remote.Runner
	switch runner.Type {
	case config.RunnerFfmpeg:
		cfg := runner.Ffmpeg
		if cfg == nil {
			return "", fmt.Errorf("ffmpeg runner configuration missing")
		}
		ffmpeg := strings.TrimSpace(cfg.FfmpegPath)
		if ffmpeg == "" {
			ffmpeg = "ffmpeg"
		}
		input := fmt.Sprintf("srt://0.0.0.0:%d?mode=listener&latency=20&pkt_size=%d", remote.IngestPort, remote.PacketSize)
		args := []string{
			"-hide_banner", "-loglevel", "warning",
			// Keep receive-side buffering minimal for live playback.
			"-fflags", "nobuffer",
			"-flags", "low_delay",
			"-i", input,
		}
		if cfg.VideoCopyEnabled() {
			args = append(args, "-c:v", "copy")
		}
		if cfg.AudioCopyEnabled() {
			args = append(args, "-c:a", "copy")
		}
		args = append(args, cfg.ExtraArgs...)
		args = append(args, "-f", cfg.Format)
		fmt.Fprintf(&b, "exec %s %s %s\n", shellquote.Join(ffmpeg), shellquote.Join(args...), remoteShellPath(cfg.Output))
	case config.RunnerHeadlessOBS:
		cfg := runner.HeadlessOBS
		if cfg == nil {
			return "", fmt.Errorf("headless_obs runner configuration missing")
		}
		for _, key := range sortedKeys(cfg.Env) {
			fmt.Fprintf(&b, "export %s=%s\n", key, shellquote.Join(cfg.Env[key]))
		}
		args := []string{"--profile", cfg.Profile, "--collection", cfg.SceneCollection}
		args = append(args, cfg.ExtraArgs...)
		command := shellquote.Join(append([]string{cfg.Binary}, args...)...)
		if cfg.Xvfb {
			command = "xvfb-run -a " + command
		}
		fmt.Fprintf(&b, "exec %s\n", command)
	case config.RunnerCustom:
		cfg := runner.Custom
		if cfg == nil {
			return "", fmt.Errorf("custom runner configuration missing")
		}
		fmt.Fprintf(&b, "exec %s\n", cfg.Command)
	default:
		return "", fmt.Errorf("unknown runner type %q", runner.Type)
	}
	return b.String(), nil
}

// remoteShellPath quotes a remote path while letting a leading ~/
// expand on the remote side.
func remoteShellPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return `"$HOME"/` + shellquote.Join(strings.TrimPrefix(path, "~/"))
	}
	return shellquote.Join(path)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
