// Command streamd is the remote receiver daemon: it listens for the
// incoming SRT stream, segments it to disk, and ships finished
// segments to object storage. It is configured entirely through the
// environment so a systemd unit or container manifest can drive it.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"stream/internal/logging"
	"stream/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := server.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	logger.Info("starting receiver daemon",
		logging.Int("srt_port", cfg.SRTPort),
		logging.Int("api_port", cfg.APIPort),
		logging.String("segment_dir", cfg.SegmentDir),
		logging.String("s3_bucket", cfg.S3Bucket))

	if err := server.New(cfg, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("receiver daemon failed", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("streamd shutting down")
}
