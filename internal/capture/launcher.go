package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// Launch describes a detached encoder process.
type Launch struct {
	PID     int
	LogPath string
}

var launchNow = time.Now

// Spawn starts the encoder detached from the calling terminal with its
// output appended to a timestamped log file under logDir. The child is
// placed in its own session so it survives CLI exit; the caller owns
// lifecycle management through the recorded PID.
func Spawn(spec *Spec, logDir string) (*Launch, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "stream-"+launchNow().Format("20060102-150405")+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	program := spec.Program
	args := spec.Args
	if spec.Nice != 0 {
		// nice execs the encoder in place, so the recorded PID stays
		// valid for the encoder itself.
		program = "nice"
		args = append([]string{"-n", strconv.Itoa(spec.Nice), spec.Program}, spec.Args...)
	}

	cmd := exec.Command(program, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn encoder: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return nil, fmt.Errorf("release encoder process: %w", err)
	}

	return &Launch{PID: pid, LogPath: logPath}, nil
}
