package blobstore

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// errorRingCap bounds the recent-errors buffer.
const errorRingCap = 100

// UploadError is one recorded upload failure.
type UploadError struct {
	Time    time.Time `json:"time"`
	Segment string    `json:"segment"`
	Message string    `json:"message"`
}

// Stats tracks process-lifetime upload counters. Reset only by
// process restart.
type Stats struct {
	mu               sync.Mutex
	segmentsUploaded uint64
	bytesUploaded    uint64
	lastSegment      string
	errors           []UploadError
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	SegmentsUploaded   uint64
	BytesUploaded      uint64
	BytesUploadedHuman string
	LastSegment        string
	Errors             []UploadError
}

func (s *Stats) recordUpload(segment string, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentsUploaded++
	s.bytesUploaded += size
	s.lastSegment = segment
}

func (s *Stats) recordError(segment string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, UploadError{
		Time:    time.Now().UTC(),
		Segment: segment,
		Message: err.Error(),
	})
	if len(s.errors) > errorRingCap {
		s.errors = s.errors[len(s.errors)-errorRingCap:]
	}
}

// Snapshot copies the counters. Errors are ordered oldest first.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]UploadError, len(s.errors))
	copy(errs, s.errors)
	return Snapshot{
		SegmentsUploaded:   s.segmentsUploaded,
		BytesUploaded:      s.bytesUploaded,
		BytesUploadedHuman: humanize.IBytes(s.bytesUploaded),
		LastSegment:        s.lastSegment,
		Errors:             errs,
	}
}

// RecentErrors returns the newest n recorded errors, newest first.
func (s *Stats) RecentErrors(n int) []UploadError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || len(s.errors) == 0 {
		return nil
	}
	if n > len(s.errors) {
		n = len(s.errors)
	}
	out := make([]UploadError, 0, n)
	for i := len(s.errors) - 1; i >= len(s.errors)-n; i-- {
		out = append(out, s.errors[i])
	}
	return out
}
