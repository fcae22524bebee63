package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stream/internal/logging"
	"stream/internal/supervisor"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string
	var restartDelaySecs int
	var maxRestarts int
	var skipRemote bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Supervise the stream in the foreground, restarting the encoder on exit",
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
			locked, err := store.TryLock()
			if err != nil {
				return err
			}
			if !locked {
				return fmt.Errorf("another stream process holds the session lock; is a daemon already running?")
			}
			defer store.Unlock()

			runID := time.Now().UTC().Format("20060102T150405Z")
			logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("stream-daemon-%s.log", runID))
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout", logPath},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			sup := supervisor.New(cfg, store, logger, supervisor.Options{
				Profile:      profileFlag,
				RestartDelay: time.Duration(restartDelaySecs) * time.Second,
				MaxRestarts:  maxRestarts,
				SkipRemote:   skipRemote,
			})
			logger.Info("daemon starting", logging.String("log_path", logPath))
			return sup.Run(signalCtx)
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Profile to supervise (defaults to the config default)")
	cmd.Flags().IntVar(&restartDelaySecs, "restart-delay", 5, "Seconds between encoder exit and respawn")
	cmd.Flags().IntVar(&maxRestarts, "max-restarts", 0, "Give up after this many consecutive restarts (0 = never)")
	cmd.Flags().BoolVar(&skipRemote, "skip-remote", false, "Supervise only the local encoder")
	return cmd
}
