// Package server is the remote receiver daemon: an ffmpeg SRT
// listener, a segment watcher feeding the object-store uploader, and
// a small HTTP control API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stream/internal/blobstore"
	"stream/internal/ingest"
	"stream/internal/logging"
	"stream/internal/segments"
)

// Server owns the receiver process, the upload pipeline, and the HTTP
// API.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	uploader *blobstore.Uploader

	// opMu serializes receiver start/stop; the spawn itself happens
	// without holding stateMu so /status never blocks behind ffmpeg.
	opMu    sync.Mutex
	stateMu sync.RWMutex
	recv    *ingest.Receiver
}

// New builds a Server from cfg. The receiver is not started until Run.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		uploader: blobstore.NewUploader(cfg.BlobConfig(), cfg.DeleteAfterUpload),
	}
}

// Run starts the watcher, the receiver, and the HTTP API, then blocks
// until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.SegmentDir, 0o755); err != nil {
		return fmt.Errorf("create segment directory: %w", err)
	}

	watcher, err := segments.NewWatcher(s.cfg.SegmentDir, ".ts", s.logger)
	if err != nil {
		return fmt.Errorf("watch segment directory: %w", err)
	}
	defer watcher.Close()

	go s.uploadLoop(ctx, watcher)

	if err := s.StartReceiver(); err != nil {
		// The API's /start can recover from this, so log and carry on.
		s.logger.Error("receiver failed to start", logging.Error(err))
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.APIPort))
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	s.logger.Info("api listening",
		logging.String("address", listener.Addr().String()),
		logging.Int("srt_port", s.cfg.SRTPort))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.StopReceiver()
		return ctx.Err()
	case err := <-serveErr:
		s.StopReceiver()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// StartReceiver spawns the ffmpeg receiver if one is not already
// running.
func (s *Server) StartReceiver() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Receiving() {
		return nil
	}

	recv, err := ingest.Start(ingest.Options{
		FfmpegPath:      s.cfg.FfmpegPath,
		SRTPort:         s.cfg.SRTPort,
		SegmentDir:      s.cfg.SegmentDir,
		SegmentDuration: s.cfg.SegmentDuration,
		Mode:            s.cfg.ReceiverMode,
		HLSListSize:     s.cfg.HLSListSize,
		ForwardURL:      s.cfg.ForwardURL,
		Logger:          s.logger,
	})
	if err != nil {
		return err
	}

	s.stateMu.Lock()
	s.recv = recv
	s.stateMu.Unlock()
	return nil
}

// StopReceiver stops the receiver if one is running. In-flight uploads
// are unaffected.
func (s *Server) StopReceiver() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	recv := s.recv
	s.recv = nil
	s.stateMu.Unlock()

	if recv != nil {
		recv.Stop()
		s.logger.Info("receiver stopped")
	}
}

// Receiving reports whether the receiver process is alive.
func (s *Server) Receiving() bool {
	s.stateMu.RLock()
	recv := s.recv
	s.stateMu.RUnlock()
	if recv == nil {
		return false
	}
	select {
	case <-recv.Done():
		return false
	default:
		return true
	}
}

func (s *Server) uploadLoop(ctx context.Context, watcher *segments.Watcher) {
	if !s.uploader.Enabled() {
		s.logger.Warn("object store not configured, segments stay on disk")
	}
	for {
		path, err := watcher.Next(ctx)
		if err != nil {
			return
		}
		name := filepath.Base(path)
		if !s.uploader.Enabled() {
			continue
		}
		s.logger.Info("uploading segment", logging.String("segment", name))
		size, err := s.uploader.UploadFile(ctx, path)
		if err != nil {
			s.logger.Error("upload failed",
				logging.String("segment", name),
				logging.Error(err))
			continue
		}
		s.logger.Info("segment uploaded",
			logging.String("segment", name),
			logging.Uint64("bytes", size))
	}
}
