// Package extract resolves a source URL to Metadata by asking yt-dlp for the
// item's JSON description. Resolve never transfers the media payload.
//
// Failures are classified into the services markers: unsupported URLs,
// private or unavailable items, deadlines, and everything else as transient.
package extract
