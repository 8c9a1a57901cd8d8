// Package daemon coordinates the long-running bot process.
//
// It wires configuration, the SQLite store, the worker pool, the pipeline
// dispatcher and the Telegram update listener into a single lifecycle with
// flock-based locking to prevent two instances polling the same bot token.
// Startup marks jobs interrupted by a previous crash as failed and sweeps
// stale job directories; shutdown stops polling first and then drains the
// in-flight jobs within a grace period.
//
// Keep orchestration logic here: the per-request flow lives in the pipeline
// package while the daemon focuses on startup, shutdown, and housekeeping.
package daemon
