// Package preflight provides readiness checks for the directories a
// reconciliation run writes into.
//
// The reconcile command runs RunAll before starting a job and refuses to
// start when a check fails; the deps command prints the same results.
package preflight
