package preflight

import (
	"context"
	"fmt"

	"stream/internal/config"
	"stream/internal/remote"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all checks for the named profile, local first. The
// remote tmux round-trip runs last so a broken local setup surfaces
// without waiting on ssh.
func RunAll(ctx context.Context, cfg *config.Config, profileName string) []Result {
	if cfg == nil {
		return nil
	}

	resolved, profile, err := cfg.Profile(profileName)
	if err != nil {
		return []Result{{Name: "Profile", Detail: err.Error()}}
	}

	results := []Result{
		{Name: "Profile", Passed: true, Detail: resolved},
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckEncoder(ctx, &profile.Local),
		CheckSSHClient(),
	}
	results = append(results, CheckRemoteTmux(ctx, remote.NewHandle(&profile.Remote)))
	return results
}

// Summarize reports whether every non-optional check passed.
func Summarize(results []Result) (passed, failed int) {
	for _, result := range results {
		if result.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// FailureError converts failed results into a single error, or nil
// when everything passed.
func FailureError(results []Result) error {
	for _, result := range results {
		if !result.Passed {
			return fmt.Errorf("preflight check %q failed: %s", result.Name, result.Detail)
		}
	}
	return nil
}
