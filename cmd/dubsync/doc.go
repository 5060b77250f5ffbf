// Package main hosts the dubsync CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the structured
// logger, and hands each invocation to the internal packages: reconcile runs
// a full job, adjust prints the planned timeline without rendering, probe
// inspects media files and deps reports toolchain readiness. history, logs
// and workdir look back at finished jobs. Keep commands thin and grow
// behaviour in internal/ first.
package main
