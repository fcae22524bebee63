package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// segmentContentType is the MPEG transport stream media type.
const segmentContentType = "video/mp2t"

var keyNow = time.Now

// Uploader streams finished segments to the object store. A
// misconfigured (empty bucket/endpoint) uploader degrades to counting
// segments without uploading, which keeps local-only deployments
// working.
type Uploader struct {
	client            objectClient
	prefix            string
	deleteAfterUpload bool
	stats             *Stats
}

// NewUploader builds an Uploader for cfg. deleteAfterUpload removes
// the local file after a successful upload.
func NewUploader(cfg Config, deleteAfterUpload bool) *Uploader {
	return &Uploader{
		client:            newClient(cfg),
		prefix:            cfg.Prefix,
		deleteAfterUpload: deleteAfterUpload,
		stats:             &Stats{},
	}
}

// Enabled reports whether uploads actually reach an object store.
func (u *Uploader) Enabled() bool {
	return u.client.Enabled()
}

// Stats exposes the upload counters.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// UploadFile uploads one segment under a date-partitioned key and
// returns the byte count. Failures are recorded in the stats ring and
// leave the local file in place for manual recovery; there is no
// automatic retry.
func (u *Uploader) UploadFile(ctx context.Context, path string) (uint64, error) {
	name := filepath.Base(path)
	body, err := os.ReadFile(path)
	if err != nil {
		wrapped := fmt.Errorf("read segment %s: %w", name, err)
		u.stats.recordError(name, wrapped)
		return 0, wrapped
	}

	key := DateKey(u.prefix, keyNow().UTC(), name)
	if err := u.client.Upload(ctx, key, segmentContentType, body); err != nil {
		u.stats.recordError(name, err)
		return 0, err
	}

	size := uint64(len(body))
	u.stats.recordUpload(name, size)

	if u.deleteAfterUpload {
		if err := os.Remove(path); err != nil {
			u.stats.recordError(name, fmt.Errorf("delete uploaded segment: %w", err))
		}
	}
	return size, nil
}

// DateKey computes the object key for a segment:
// {prefix}/{YYYY}/{MM}/{DD}/{filename}, with the prefix omitted when
// empty.
func DateKey(prefix string, t time.Time, filename string) string {
	dated := fmt.Sprintf("%04d/%02d/%02d/%s", t.Year(), int(t.Month()), t.Day(), filename)
	if prefix == "" {
		return dated
	}
	return prefix + "/" + dated
}
