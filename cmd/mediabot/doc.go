// Command mediabot runs the Telegram media download bot and offers the
// operator tooling around it: configuration scaffolding, account grants, job
// history and a status report. Only "mediabot daemon" talks to Telegram; the
// other commands work directly on the SQLite database and are safe to run
// next to a live daemon.
package main
