// Package main hosts the stream CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into
// session state transitions: starting the remote receiver over ssh,
// spawning the local encoder, probing and tearing both down, and
// configuration scaffolding. It centralizes configuration resolution
// and session locking so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
