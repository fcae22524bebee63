// Package remote renders and executes the shell scripts that control
// the receiver session on the remote host. The scripts are the whole
// control plane: idempotent start/stop/status of one named tmux
// session, executed over ssh with the script piped to stdin.
package remote

import (
	"strings"

	"stream/internal/config"
)

// Handle is the minimal serializable identity of a remote session. It
// round-trips through the session store.
type Handle struct {
	Host        string `json:"host"`
	User        string `json:"user,omitempty"`
	Port        int    `json:"port,omitempty"`
	TmuxSession string `json:"tmux_session"`
}

// NewHandle derives a Handle from the remote configuration.
func NewHandle(remote *config.RemoteConfig) Handle {
	return Handle{
		Host:        remote.Host,
		User:        remote.User,
		Port:        remote.Port,
		TmuxSession: remote.TmuxSession,
	}
}

// Target returns the ssh destination ("user@host" or "host").
func (h Handle) Target() string {
	if strings.TrimSpace(h.User) == "" {
		return h.Host
	}
	return h.User + "@" + h.Host
}
