// Package notifications sends operator alerts to an ntfy topic.
//
// Only a handful of events are published: daemon start and stop, jobs that
// fail for unexpected reasons, and a test message. When no topic is
// configured NewService returns a no-op implementation.
package notifications
