// Package config loads, normalizes, and validates reshelve configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the RESHELVE_LIBRARY_DIR
// environment fallback. The Config type centralizes every knob the migration
// engine and CLI need, so the collection root, state directory, backup policy
// and classification settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
