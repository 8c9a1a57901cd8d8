// Package preflight provides readiness checks for the filesystem and the
// external binaries mediabot depends on.
//
// The daemon runs RunAll at startup and refuses to start when a check fails.
// The CLI "mediabot status" command renders the same results alongside the
// dependency table from CheckSystemDeps.
package preflight
