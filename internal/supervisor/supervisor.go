// Package supervisor keeps a streaming profile running: it starts the
// remote receiver once, then respawns the local encoder whenever it
// exits until the context is cancelled or the restart budget runs out.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stream/internal/capture"
	"stream/internal/config"
	"stream/internal/logging"
	"stream/internal/proc"
	"stream/internal/remote"
	"stream/internal/session"
)

const stopGrace = 3 * time.Second

// Options configures the supervision loop.
type Options struct {
	// Profile names the profile to supervise; empty selects the
	// config default.
	Profile string
	// RestartDelay is the pause between an encoder exit and the next
	// spawn attempt.
	RestartDelay time.Duration
	// MaxRestarts bounds consecutive respawns; zero means unlimited.
	MaxRestarts int
	// SkipRemote supervises only the local encoder.
	SkipRemote bool
}

// Supervisor drives the restart loop for one profile.
type Supervisor struct {
	cfg    *config.Config
	store  *session.Store
	logger *slog.Logger
	opts   Options
}

// New constructs a Supervisor over the given config and session store.
func New(cfg *config.Config, store *session.Store, logger *slog.Logger, opts Options) *Supervisor {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 5 * time.Second
	}
	return &Supervisor{cfg: cfg, store: store, logger: logger, opts: opts}
}

// Run supervises until ctx is cancelled or the restart budget is
// exhausted. On exit it tears down the local encoder, stops the
// remote session, and clears the durable record. A signal-driven
// shutdown is a normal exit and returns nil; only the exhausted
// restart budget and pre-loop failures are errors.
func (s *Supervisor) Run(ctx context.Context) error {
	profileName, profile, err := s.cfg.Profile(s.opts.Profile)
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
	if !s.opts.SkipRemote {
		if err := remote.Run(ctx, handle, startScript); err != nil {
			return fmt.Errorf("start remote session: %w", err)
		}
		s.logger.Info("remote session ready",
			logging.String("profile", profileName),
			logging.String("target", handle.Target()),
			logging.String("tmux_session", handle.TmuxSession))
	}

	defer s.teardown(handle)

	restarts := 0
	for {
		launch, err := capture.Spawn(spec, s.cfg.Paths.LogDir)
		if err != nil {
			return fmt.Errorf("spawn encoder: %w", err)
		}
		s.logger.Info("encoder started",
			logging.String("profile", profileName),
			logging.Int("pid", launch.PID),
			logging.String("log_path", launch.LogPath),
			logging.Int("restarts", restarts))

		record := &session.State{
			Profile:   profileName,
			StartedAt: time.Now().UTC(),
			LocalPID:  launch.PID,
			LogPath:   launch.LogPath,
		}
		if !s.opts.SkipRemote {
			record.Remote = &handle
		}
		if err := s.store.Write(record); err != nil {
			_, _ = proc.Terminate(launch.PID, stopGrace)
			return fmt.Errorf("write session record: %w", err)
		}

		exited := s.waitForExit(ctx, launch.PID)
		if !exited {
			// Shutdown signal while the encoder was healthy. A clean
			// stop is a success, not an error.
			if escalated, err := proc.Terminate(launch.PID, stopGrace); err == nil && escalated {
				s.logger.Warn("encoder ignored SIGTERM, killed", logging.Int("pid", launch.PID))
			}
			s.logger.Info("shutdown requested, stopping")
			return nil
		}

		restarts++
		if s.opts.MaxRestarts > 0 && restarts > s.opts.MaxRestarts {
			return fmt.Errorf("encoder keeps exiting: max restarts (%d) reached", s.opts.MaxRestarts)
		}
		s.logger.Warn("encoder exited, restarting",
			logging.Int("restarts", restarts),
			logging.Duration("delay", s.opts.RestartDelay))

		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested, stopping")
			return nil
		case <-time.After(s.opts.RestartDelay):
		}
	}
}

// waitForExit blocks until the pid exits (true) or ctx is cancelled
// (false).
func (s *Supervisor) waitForExit(ctx context.Context, pid int) bool {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !proc.Alive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) teardown(handle remote.Handle) {
	if !s.opts.SkipRemote {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := remote.Run(stopCtx, handle, remote.RenderStop(handle)); err != nil {
			var scriptErr *remote.ScriptError
			if !errors.As(err, &scriptErr) {
				s.logger.Warn("remote stop failed", logging.Error(err))
			}
		}
	}
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("clear session record failed", logging.Error(err))
	}
}
