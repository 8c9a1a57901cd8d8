// Package messaging abstracts the chat transport used to talk to requesters
// and audit channels.
//
// Channel is the narrow surface the pipeline needs. Operations addressing a
// message that no longer exists, or an edit that changes nothing, succeed as
// no-ops so callers can treat stale handles as harmless. Telegram implements
// Channel over the Bot API with a token-bucket limiter on edits per chat;
// messagingtest provides a recording fake for tests.
package messaging
