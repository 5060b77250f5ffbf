// Package workdir inspects and prunes per-job scratch directories under
// paths.work_dir.
//
// Every reconciliation job holds LockName inside its directory while it
// runs; cleanup skips any directory whose lock is held.
package workdir
