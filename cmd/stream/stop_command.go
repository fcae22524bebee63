package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stream/internal/proc"
	"stream/internal/remote"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var keepRemote bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the local encoder and the remote receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			out := cmd.OutOrStdout()
			if record == nil {
				fmt.Fprintln(out, "No active session.")
				return nil
			}

			// Best effort: a dead encoder or unreachable host must not
			// leave the record behind.
			var failures []error

			if proc.Alive(record.LocalPID) {
				escalated, err := proc.Terminate(record.LocalPID, stopGrace)
				switch {
				case err != nil:
					failures = append(failures, fmt.Errorf("stop encoder: %w", err))
				case escalated:
					fmt.Fprintf(out, "Encoder (pid %d) ignored SIGTERM, killed\n", record.LocalPID)
				default:
					fmt.Fprintf(out, "Encoder (pid %d) stopped\n", record.LocalPID)
				}
			} else {
				fmt.Fprintf(out, "Encoder (pid %d) already exited\n", record.LocalPID)
			}

			if record.Remote != nil && !keepRemote {
				handle := *record.Remote
				if err := remote.Run(cmd.Context(), handle, remote.RenderStop(handle)); err != nil {
					// The host may be unreachable; that must not block
					// local cleanup.
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unable to stop remote session %q on %s: %v\n",
						handle.TmuxSession, handle.Target(), err)
				} else {
					fmt.Fprintf(out, "Remote session %q on %s stopped\n", handle.TmuxSession, handle.Target())
				}
			}

			if err := store.Clear(); err != nil {
				failures = append(failures, err)
			}
			return errors.Join(failures...)
		},
	}

	cmd.Flags().BoolVar(&keepRemote, "keep-remote", false, "Leave the remote session running")
	return cmd
}
