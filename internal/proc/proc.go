// Package proc provides liveness probing and escalating termination
// for processes owned by this tool.
package proc

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// termPollInterval is how often Terminate re-probes liveness while
// waiting for a signalled process to exit.
const termPollInterval = 200 * time.Millisecond

// Alive reports whether pid refers to a running process. It probes
// with signal 0 rather than trusting any stored record; EPERM still
// means the process exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// Signal sends sig to pid.
func Signal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal %s to pid %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}

// WaitForExit polls until pid is no longer alive or timeout elapses.
// Returns true when the process exited within the window.
func WaitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for Alive(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(termPollInterval)
	}
	return true
}

// Terminate sends SIGTERM, waits up to gracePeriod for the process to
// exit, then escalates to SIGKILL. Returns true when escalation was
// required.
func Terminate(pid int, gracePeriod time.Duration) (bool, error) {
	if !Alive(pid) {
		return false, nil
	}
	if err := Signal(pid, unix.SIGTERM); err != nil {
		return false, err
	}
	if WaitForExit(pid, gracePeriod) {
		return false, nil
	}
	if err := Signal(pid, unix.SIGKILL); err != nil {
		return true, err
	}
	// SIGKILL cannot be ignored; give the kernel a moment to reap.
	WaitForExit(pid, time.Second)
	return true, nil
}
