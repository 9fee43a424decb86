// Package config loads, normalizes, and validates montage configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MONTAGE_WORKERS and
// MONTAGE_MEMORY_MB environment overrides. The Config type centralizes every
// knob the CLI, the render orchestrator, and the encoder need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
