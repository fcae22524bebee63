package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSegment(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	return path
}

func fixedKeyTime(t *testing.T) {
	t.Helper()
	keyNow = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { keyNow = time.Now })
}

func TestUploadFileSendsSignedPut(t *testing.T) {
	fixedKeyTime(t)

	var gotPath, gotContentType, gotAuth, gotHash string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotHash = r.Header.Get("x-amz-content-sha256")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	endpoint, _ := url.Parse(server.URL)
	uploader := NewUploader(Config{
		Endpoint:  endpoint.Host,
		Bucket:    "stream-archive",
		Prefix:    "segments",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	}, false)

	path := writeSegment(t, "stream-20260830-120000-001.ts", "payload")
	size, err := uploader.UploadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if size != uint64(len("payload")) {
		t.Fatalf("unexpected size %d", size)
	}
	if gotPath != "/stream-archive/segments/2026/08/30/stream-20260830-120000-001.ts" {
		t.Fatalf("unexpected object path %q", gotPath)
	}
	if gotContentType != "video/mp2t" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotHash == "" {
		t.Fatal("missing payload hash header")
	}

	snap := uploader.Stats().Snapshot()
	if snap.SegmentsUploaded != 1 || snap.BytesUploaded != uint64(len("payload")) {
		t.Fatalf("unexpected stats: %+v", snap)
	}
	if snap.LastSegment != "stream-20260830-120000-001.ts" {
		t.Fatalf("unexpected last segment %q", snap.LastSegment)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("segment should be retained without delete-after-upload: %v", err)
	}
}

func TestUploadFileDeletesAfterUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	endpoint, _ := url.Parse(server.URL)
	uploader := NewUploader(Config{Endpoint: endpoint.Host, Bucket: "b"}, true)

	path := writeSegment(t, "seg.ts", "x")
	if _, err := uploader.UploadFile(context.Background(), path); err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected segment deleted, stat err %v", err)
	}
}

func TestUploadFailureRecordedAndFileRetained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	endpoint, _ := url.Parse(server.URL)
	uploader := NewUploader(Config{Endpoint: endpoint.Host, Bucket: "b"}, true)

	path := writeSegment(t, "seg.ts", "x")
	if _, err := uploader.UploadFile(context.Background(), path); err == nil {
		t.Fatal("expected upload error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("failed segment must be retained: %v", err)
	}

	snap := uploader.Stats().Snapshot()
	if snap.SegmentsUploaded != 0 {
		t.Fatalf("failed upload must not count: %+v", snap)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Segment != "seg.ts" {
		t.Fatalf("expected recorded error: %+v", snap.Errors)
	}
}

func TestUploaderWithoutBucketIsDisabled(t *testing.T) {
	uploader := NewUploader(Config{}, false)
	if uploader.Enabled() {
		t.Fatal("expected disabled uploader without bucket")
	}

	path := writeSegment(t, "seg.ts", "x")
	if _, err := uploader.UploadFile(context.Background(), path); err != nil {
		t.Fatalf("disabled uploader must accept segments: %v", err)
	}
}

func TestSnapshotRendersIECByteCounts(t *testing.T) {
	stats := &Stats{}
	stats.recordUpload("stream-20260830-120000-001.ts", 2048)

	snap := stats.Snapshot()
	if snap.BytesUploadedHuman != "2.0 KiB" {
		t.Fatalf("expected IEC units, got %q", snap.BytesUploadedHuman)
	}
}

func TestErrorRingIsBounded(t *testing.T) {
	stats := &Stats{}
	for i := 0; i < errorRingCap+20; i++ {
		stats.recordError(fmt.Sprintf("seg-%d.ts", i), errors.New("boom"))
	}
	snap := stats.Snapshot()
	if len(snap.Errors) != errorRingCap {
		t.Fatalf("expected %d errors, got %d", errorRingCap, len(snap.Errors))
	}
	if snap.Errors[0].Segment != "seg-20.ts" {
		t.Fatalf("expected oldest entries evicted, got %q", snap.Errors[0].Segment)
	}
}

func TestRecentErrorsNewestFirst(t *testing.T) {
	stats := &Stats{}
	for i := 0; i < 8; i++ {
		stats.recordError(fmt.Sprintf("seg-%d.ts", i), errors.New("boom"))
	}
	recent := stats.RecentErrors(5)
	if len(recent) != 5 {
		t.Fatalf("expected 5 errors, got %d", len(recent))
	}
	if recent[0].Segment != "seg-7.ts" || recent[4].Segment != "seg-3.ts" {
		t.Fatalf("unexpected ordering: %+v", recent)
	}
}

func TestDateKey(t *testing.T) {
	at := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := DateKey("segments", at, "a.ts"); got != "segments/2026/01/05/a.ts" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := DateKey("", at, "a.ts"); got != "2026/01/05/a.ts" {
		t.Fatalf("unexpected key without prefix %q", got)
	}
}
