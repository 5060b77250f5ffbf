// Package reconcile runs a whole dubbing reconciliation job.
//
// A Job is built once from the request and configuration and then passed by
// value into every stage. The Service probes the produced clips through a
// bounded worker pool, lays them out with the timeline adjuster, renders each
// slot through the transformer pool, and hands the ordered results to the
// assembler. When a video is supplied it is stretched to the assembled track
// and muxed. Every run writes a JSON report, an adjusted SRT, a per-job log,
// and optionally a history ledger row.
package reconcile
