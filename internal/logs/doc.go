// Package logs reads the daemon's log file for the CLI.
//
// Tail returns the last lines of mediabot.log or everything appended after a
// byte offset, optionally waiting for new output. A Filter narrows the lines
// to one job or account; JSON lines are matched on their structured fields
// and console lines on their job subject and key=value text.
package logs
