// Package history persists finished reconciliation runs in a small SQLite
// ledger so the CLI can list recent jobs and their verification outcome.
// The ledger is write-once per job and never feeds back into planning.
package history
