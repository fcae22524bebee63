// Package config loads and validates the stream configuration file.
//
// The file is TOML with a default_profile name and a table of named
// profiles. Each profile bundles the remote receiver settings and the
// local capture/encode settings. Loading expands paths, applies
// defaults, and validates; a loaded Config is never mutated at
// runtime.
package config
