// Package preflight provides readiness checks for the binaries, paths,
// and remote host a streaming profile depends on.
//
// The CLI "stream check" command runs the full set before a first
// start. Local checks are cheap; the remote tmux round-trip is the
// only one that touches the network.
package preflight
