// Package config loads, normalizes, and validates descant's configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files written with github.com/pelletier/go-toml/v2,
// and honors environment fallbacks for sync credentials (DESCANT_SCP_KEY,
// DESCANT_S3_REGION; AWS credentials follow the SDK's own chain). The Config
// type centralizes every knob the daemon and CLI need: queue roots, media
// tool paths, chunking/crossfade tunables, variant selection, and the Sync
// Router's route table.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths, canonical enum values, and clear validation
// errors rather than re-deriving them.
package config
