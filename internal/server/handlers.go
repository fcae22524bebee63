package server

import (
	"encoding/json"
	"net/http"

	"stream/internal/logging"
)

// recentErrorLimit caps the error list in /status responses.
const recentErrorLimit = 5

// StatusResponse is the /status payload.
type StatusResponse struct {
	Receiving          bool     `json:"receiving"`
	SRTPort            int      `json:"srt_port"`
	S3Bucket           string   `json:"s3_bucket"`
	SegmentsUploaded   uint64   `json:"segments_uploaded"`
	BytesUploaded      uint64   `json:"bytes_uploaded"`
	BytesUploadedHuman string   `json:"bytes_uploaded_human"`
	LastSegment        string   `json:"last_segment"`
	RecentErrors       []string `json:"recent_errors"`
}

// Handler returns the control API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	return requestIDMiddleware(s.logger, mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Stream receiver - GET /start, /stop, /status, /health\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.uploader.Stats().Snapshot()

	recent := s.uploader.Stats().RecentErrors(recentErrorLimit)
	messages := make([]string, 0, len(recent))
	for _, e := range recent {
		messages = append(messages, e.Segment+": "+e.Message)
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Receiving:          s.Receiving(),
		SRTPort:            s.cfg.SRTPort,
		S3Bucket:           s.cfg.S3Bucket,
		SegmentsUploaded:   snap.SegmentsUploaded,
		BytesUploaded:      snap.BytesUploaded,
		BytesUploadedHuman: snap.BytesUploadedHuman,
		LastSegment:        snap.LastSegment,
		RecentErrors:       messages,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.StartReceiver(); err != nil {
		s.logger.Error("start receiver", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.StopReceiver()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
