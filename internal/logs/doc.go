// Package logs reads per-job JSON log files back for display.
//
// Tail returns the last lines of a log or everything past an offset, and
// can poll for new lines while a job is still running. ParseEntry and
// Filter narrow the output to one slot or a minimum level.
package logs
