// Package services defines shared utilities consumed by the reconciliation
// components and their external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, slot indices, and stage names for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     as fatal (assembly, configuration) or recoverable (probe, transform,
//     duration mismatch).
//
// Use these helpers when wiring new component logic so operational behaviour
// (error handling, observability, fallbacks) stays uniform across the job.
package services
