package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"stream/internal/config"
	"stream/internal/deps"
	"stream/internal/remote"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEncoder resolves the configured encoder binary and reports its
// version when it can be executed.
func CheckEncoder(ctx context.Context, local *config.LocalConfig) Result {
	const name = "Encoder binary"

	statuses := deps.CheckBinaries([]deps.Requirement{{
		Name:        name,
		Command:     local.FfmpegPath,
		Description: "Captures and encodes the local stream",
	}})
	status := statuses[0]
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	if version := deps.FfmpegVersion(ctx, status.Command); version != "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (version %s)", status.Command, version)}
	}
	return Result{Name: name, Passed: true, Detail: status.Command}
}

// CheckSSHClient verifies an ssh client is on PATH.
func CheckSSHClient() Result {
	const name = "ssh client"

	path, err := exec.LookPath("ssh")
	if err != nil {
		return Result{Name: name, Detail: "binary \"ssh\" not found"}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckRemoteTmux round-trips to the remote host and confirms tmux is
// installed there. It uses a 10-second timeout and a single attempt.
func CheckRemoteTmux(ctx context.Context, handle remote.Handle) Result {
	const name = "Remote tmux"

	if strings.TrimSpace(handle.Host) == "" {
		return Result{Name: name, Detail: "remote host not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := remote.RunOutput(checkCtx, handle, "tmux -V")
	if err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(handle, err)}
	}
	version := strings.TrimSpace(output)
	if version == "" {
		version = "reachable"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", handle.Target(), version)}
}

func summarizeRemoteError(handle remote.Handle, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("connection to %s timed out", handle.Target())
	}
	var scriptErr *remote.ScriptError
	if errors.As(err, &scriptErr) {
		return fmt.Sprintf("tmux missing or broken on %s: %s", handle.Target(), scriptErr.Error())
	}
	return err.Error()
}
