package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stream/internal/proc"
	"stream/internal/session"
)

type cliTestEnv struct {
	base       string
	configPath string
	callLog    string
}

// setupCLITestEnv writes a working config plus stub ssh/ffmpeg/nice
// binaries and points PATH at them. The ssh stub consumes the piped
// script and appends its arguments to callLog.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	callLog := filepath.Join(base, "ssh-calls")

	stubs := map[string]string{
		"ssh":    fmt.Sprintf("#!/bin/sh\ncat >/dev/null\necho \"$@\" >> %s\nexit 0\n", callLog),
		"ffmpeg": "#!/bin/sh\nif [ \"$1\" = \"-version\" ]; then echo 'ffmpeg version 7.1'; exit 0; fi\nsleep 30\n",
		"nice":   "#!/bin/sh\nshift 2\nexec \"$@\"\n",
	}
	for name, body := range stubs {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte(body), 0o755); err != nil {
			t.Fatalf("write %s stub: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir)

	configPath := filepath.Join(base, "config.toml")
	configBody := fmt.Sprintf(`
default_profile = "main"

[paths]
state_dir = %q
log_dir = %q

[profiles.main]
description = "Test stream"

[profiles.main.remote]
host = "recv.example.com"

[profiles.main.local]
ffmpeg_path = "ffmpeg"

[profiles.main.local.capture.avfoundation]
video_device = "3"
audio_device = "1"

[profiles.main.local.encoder]
type = "h264_videotoolbox"
`, filepath.Join(base, "state"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := &cliTestEnv{base: base, configPath: configPath, callLog: callLog}
	t.Cleanup(env.killLeftoverEncoder)
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append(args, "--config", e.configPath))
	err := cmd.Execute()
	return buf.String(), err
}

func (e *cliTestEnv) sessionFile() string {
	return filepath.Join(e.base, "state", "session.json")
}

func (e *cliTestEnv) loadSession(t *testing.T) *session.State {
	t.Helper()
	record, err := session.NewStore(e.sessionFile()).Load()
	if err != nil {
		t.Fatalf("load session record: %v", err)
	}
	return record
}

func (e *cliTestEnv) sshCalls(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(e.callLog)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read ssh call log: %v", err)
	}
	return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
}

// killLeftoverEncoder reaps any encoder a failed test left behind.
func (e *cliTestEnv) killLeftoverEncoder() {
	record, err := session.NewStore(e.sessionFile()).Load()
	if err != nil || record == nil {
		return
	}
	_, _ = proc.Terminate(record.LocalPID, 100*time.Millisecond)
}
