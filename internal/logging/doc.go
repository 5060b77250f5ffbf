// Package logging assembles structured slog loggers and formatting helpers used
// across dubsync.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so reconciliation code can tag log lines with
// job IDs, slot indexes, and stages. Per-job log files are attached with
// TeeLogger, and CleanupOldLogs prunes them once they age out. A no-op logger
// is provided for tests and wiring code that cannot fail.
package logging
