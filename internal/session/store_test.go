package session_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stream/internal/remote"
	"stream/internal/session"
)

func newStore(t *testing.T) *session.Store {
	t.Helper()
	return session.NewStore(filepath.Join(t.TempDir(), "state", "session.json"))
}

func TestLoadAbsentRecordReturnsNil(t *testing.T) {
	store := newStore(t)
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	store := newStore(t)
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	want := &session.State{
		Profile:   "main",
		StartedAt: started,
		LocalPID:  os.Getpid(),
		LogPath:   "/tmp/stream.log",
		Remote: &remote.Handle{
			Host:        "example.com",
			User:        "stream",
			TmuxSession: "streamd",
		},
	}
	if err := store.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected state")
	}
	if got.Profile != "main" || got.LocalPID != want.LocalPID || got.LogPath != want.LogPath {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected started_at: %v", got.StartedAt)
	}
	if got.Remote == nil || got.Remote.Host != "example.com" || got.Remote.TmuxSession != "streamd" {
		t.Fatalf("unexpected remote handle: %+v", got.Remote)
	}
	if !got.LocalRunning() {
		t.Fatal("current process should be reported running")
	}
}

func TestRecordOmitsEmptyRemoteFields(t *testing.T) {
	store := newStore(t)
	state := &session.State{Profile: "main", LocalPID: 1234, Remote: &remote.Handle{Host: "example.com", TmuxSession: "streamd"}}
	if err := store.Write(state); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("record is not valid JSON: %v", err)
	}
	remoteObj, ok := decoded["remote"].(map[string]any)
	if !ok {
		t.Fatalf("expected remote object, got %T", decoded["remote"])
	}
	if _, present := remoteObj["user"]; present {
		t.Fatal("empty user should be omitted from the record")
	}
	if _, present := remoteObj["port"]; present {
		t.Fatal("zero port should be omitted from the record")
	}
}

func TestSkippedRemoteSerializesAsNull(t *testing.T) {
	store := newStore(t)
	if err := store.Write(&session.State{Profile: "main", LocalPID: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("parse record: %v", err)
	}
	if value, present := decoded["remote"]; !present || value != nil {
		t.Fatalf("expected remote null, got %v", value)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := newStore(t)
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on absent record: %v", err)
	}
	if err := store.Write(&session.State{Profile: "main", LocalPID: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	state, err := store.Load()
	if err != nil || state != nil {
		t.Fatalf("expected empty store, got %+v err %v", state, err)
	}
}

func TestDeadPidReportedNotRunning(t *testing.T) {
	state := &session.State{LocalPID: 1 << 30}
	if state.LocalRunning() {
		t.Fatal("implausible pid should not be reported running")
	}
}

func TestLockUnlock(t *testing.T) {
	store := newStore(t)
	if err := store.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := store.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}
