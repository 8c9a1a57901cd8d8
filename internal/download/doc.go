// Package download fetches the media payload for a resolved job.
//
// Orchestrator runs the blocking fetch on the shared worker pool and feeds
// progress samples through a one-slot lossy channel to a single consumer per
// job. The consumer applies Throttle, a dual gate on elapsed time and percent
// delta, before calling the job's ProgressSink. When the fetch completes the
// artifact is renamed after the sanitized title.
package download
