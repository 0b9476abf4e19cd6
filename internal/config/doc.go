// Package config loads, normalizes, and validates pink-transcriber
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PINK_TRANSCRIBER_MODEL_DIR and VERBOSE. The Config type centralizes every
// knob the daemon and CLI need, from the transport endpoint and model engine
// settings to singleton markers and journal placement.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical transport kinds, and clear validation errors.
package config
