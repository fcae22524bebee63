package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"stream/internal/config"
	"stream/internal/remote"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var probeRemote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current streaming session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.sessionStore()
			if err != nil {
				return err
			}
			record, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if record == nil {
				fmt.Fprintln(out, "No active session.")
				fmt.Fprintln(out)
				fmt.Fprintln(out, profilesTable(cfg))
				return nil
			}

			fmt.Fprintln(out, renderStatusLine("Profile", statusInfo, record.Profile, colorize))
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo,
				fmt.Sprintf("%s (%s)", record.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(record.StartedAt)), colorize))

			if record.LocalRunning() {
				fmt.Fprintln(out, renderStatusLine("Encoder", statusOK, fmt.Sprintf("running (pid %d)", record.LocalPID), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Encoder", statusError, fmt.Sprintf("not running (recorded pid %d)", record.LocalPID), colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Encoder log", statusInfo, record.LogPath, colorize))

			switch {
			case record.Remote == nil:
				fmt.Fprintln(out, renderStatusLine("Remote", statusWarn, "not managed (started with --skip-remote)", colorize))
			case probeRemote:
				fmt.Fprintln(out, remoteStatusLine(cmd, *record.Remote, colorize))
			default:
				fmt.Fprintln(out, renderStatusLine("Remote", statusInfo,
					fmt.Sprintf("%s (tmux session %q, not probed; use --remote)", record.Remote.Target(), record.Remote.TmuxSession), colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probeRemote, "remote", false, "Probe the remote tmux session over ssh")
	return cmd
}

func remoteStatusLine(cmd *cobra.Command, handle remote.Handle, colorize bool) string {
	err := remote.Run(cmd.Context(), handle, remote.RenderStatus(handle))
	if err == nil {
		return renderStatusLine("Remote", statusOK,
			fmt.Sprintf("tmux session %q active on %s", handle.TmuxSession, handle.Target()), colorize)
	}
	var scriptErr *remote.ScriptError
	if errors.As(err, &scriptErr) {
		return renderStatusLine("Remote", statusError,
			fmt.Sprintf("tmux session %q not running on %s", handle.TmuxSession, handle.Target()), colorize)
	}
	return renderStatusLine("Remote", statusError, fmt.Sprintf("probe failed: %v", err), colorize)
}

func profilesTable(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		profile := cfg.Profiles[name]
		display := name
		if name == cfg.DefaultProfile {
			display += " (default)"
		}
		rows = append(rows, []string{display, profile.Remote.Host, profile.Description})
	}
	return renderTable([]string{"Profile", "Remote Host", "Description"}, rows)
}
