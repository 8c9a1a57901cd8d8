// Package pipeline drives one user request from admission to delivery.
//
// Run executes the stages in order on the calling goroutine: admission,
// metadata resolution, policy checks on the resolved item, fetch, optional
// watermark, delivery and finally the ledger update. Every exit path, panics
// included, fails the job exactly once, answers the user through UserMessage
// and removes the job's tracked files. Dispatcher runs each request on its own
// goroutine so one slow download never blocks another.
package pipeline
