// Package config loads, normalizes, and validates dubsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DUBSYNC_FFMPEG. The Config type centralizes every knob the CLI and the
// reconciliation job need, so the work directory, toolchain binaries, timing
// tolerances, and worker limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
