package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// sshCommand is swapped out by tests to avoid real ssh connections.
var sshCommand = exec.CommandContext

// ScriptError reports a remote script that exited nonzero.
type ScriptError struct {
	Status int
	Output string
}

func (e *ScriptError) Error() string {
	if strings.TrimSpace(e.Output) == "" {
		return fmt.Sprintf("remote script failed with exit status %d", e.Status)
	}
	return fmt.Sprintf("remote script failed with exit status %d: %s", e.Status, strings.TrimSpace(e.Output))
}

// Run executes script on the handle's host by piping it to a remote
// bash over ssh. A nonzero remote exit surfaces as a *ScriptError.
func Run(ctx context.Context, handle Handle, script string) error {
	_, err := RunOutput(ctx, handle, script)
	return err
}

// RunOutput is Run with the combined remote output returned on success.
func RunOutput(ctx context.Context, handle Handle, script string) (string, error) {
	args := []string{}
	if handle.Port > 0 {
		args = append(args, "-p", strconv.Itoa(handle.Port))
	}
	args = append(args, "-o", "BatchMode=yes", handle.Target(), "bash", "-s")

	cmd := sshCommand(ctx, "ssh", args...)
	cmd.Stdin = strings.NewReader(script)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ScriptError{Status: exitErr.ExitCode(), Output: output.String()}
		}
		return "", fmt.Errorf("run ssh to %s: %w", handle.Target(), err)
	}
	return output.String(), nil
}
