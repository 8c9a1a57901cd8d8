// Package bot turns Telegram updates into pipeline requests and answers the
// account commands (/start, /status, /help) and the admin /grant command.
//
// Listener owns the long-poll loop. Handler is transport agnostic apart from
// the tgbotapi.Message it parses, which keeps it testable without a server.
package bot
