package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"stream/internal/capture"
	"stream/internal/proc"
	"stream/internal/remote"
	"stream/internal/session"
)

const stopGrace = 3 * time.Second

func newStartCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string
	var dryRun bool
	var skipRemote bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the remote receiver and the local encoder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			profileName, profile, err := cfg.Profile(profileFlag)
			if err != nil {
				return err
			}

			spec, err := capture.Build(&profile.Local, &profile.Remote)
			if err != nil {
				return err
			}
			handle, startScript, err := remote.RenderStart(&profile.Remote)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Profile: %s\n\n", profileName)
				fmt.Fprintf(out, "Local encoder command:\n  %s\n\n", spec.Preview)
				if skipRemote {
					fmt.Fprintln(out, "Remote session: skipped (--skip-remote)")
				} else {
					fmt.Fprintf(out, "Remote start script for %s (tmux session %q):\n%s", handle.Target(), handle.TmuxSession, startScript)
				}
				return nil
			}

			store, err := ctx.sessionStore()
			if err != nil {
				return err
			}
			locked, err := store.TryLock()
			if err != nil {
				return err
			}
			if !locked {
				return fmt.Errorf("session state is locked by another stream process (a daemon, or a concurrent start/stop)")
			}
			defer store.Unlock()

			record, err := store.Load()
			if err != nil {
				return err
			}
			if record != nil {
				if record.LocalRunning() {
					return fmt.Errorf("already streaming profile %q (pid %d); run `stream stop` first", record.Profile, record.LocalPID)
				}
				// Stale record from a crashed encoder; reclaim it.
				fmt.Fprintf(out, "Removing stale session record (pid %d is gone)\n", record.LocalPID)
				if err := store.Clear(); err != nil {
					return err
				}
			}

			// Remote comes up first so the encoder has a listener to
			// connect to.
			if !skipRemote {
				if err := remote.Run(cmd.Context(), handle, startScript); err != nil {
					return fmt.Errorf("start remote session: %w", err)
				}
				fmt.Fprintf(out, "Remote session %q ready on %s\n", handle.TmuxSession, handle.Target())
			}

			launch, err := capture.Spawn(spec, cfg.Paths.LogDir)
			if err != nil {
				if !skipRemote {
					rollbackRemote(handle, out)
				}
				return err
			}

			state := &session.State{
				Profile:   profileName,
				StartedAt: time.Now().UTC(),
				LocalPID:  launch.PID,
				LogPath:   launch.LogPath,
			}
			if !skipRemote {
				state.Remote = &handle
			}
			if err := store.Write(state); err != nil {
				_, _ = proc.Terminate(launch.PID, stopGrace)
				if !skipRemote {
					rollbackRemote(handle, out)
				}
				return fmt.Errorf("write session record: %w", err)
			}

			fmt.Fprintf(out, "Encoder running (pid %d), logging to %s\n", launch.PID, launch.LogPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Profile to start (defaults to the config default)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the commands without starting anything")
	cmd.Flags().BoolVar(&skipRemote, "skip-remote", false, "Start only the local encoder")
	return cmd
}

// rollbackRemote tears down a remote session that was started during a
// failed start so a retry begins from a clean slate.
func rollbackRemote(handle remote.Handle, out io.Writer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := remote.Run(ctx, handle, remote.RenderStop(handle)); err != nil {
		fmt.Fprintf(out, "warning: rollback of remote session failed: %v\n", err)
	}
}
