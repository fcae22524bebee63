package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// FfmpegVersion runs the resolved ffmpeg binary and extracts its
// version string for diagnostics, e.g. "7.1". Returns an empty string
// when the binary cannot be executed or the banner is unrecognized.
func FfmpegVersion(ctx context.Context, command string) string {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(runCtx, command, "-version").Output()
	if err != nil {
		return ""
	}
	firstLine, _, _ := strings.Cut(string(output), "\n")
	fields := strings.Fields(firstLine)
	// Banner format: "ffmpeg version N.N ...".
	if len(fields) >= 3 && fields[1] == "version" {
		return fields[2]
	}
	return ""
}
