// Package logging wraps log/slog with the repository's handler and
// attribute conventions. Console output is a compact key=value format
// for interactive use; the json format is intended for log files and
// the server daemon.
package logging
