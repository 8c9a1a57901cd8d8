// Package config loads, normalizes, and validates mediabot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIABOT_TELEGRAM_TOKEN and ADMIN_IDS. The Config type centralizes the quota
// rules, content policy, downloader timeouts and audit destinations so the
// pipeline reads one typed structure instead of ad hoc lookups.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
