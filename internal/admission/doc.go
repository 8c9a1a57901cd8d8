// Package admission decides whether a request may proceed. It applies the
// content filter and the free-tier quota and duration limits to account
// snapshots supplied by the caller and never mutates the ledger.
package admission
