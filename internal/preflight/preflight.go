package preflight

import (
	"context"

	"dubsync/internal/config"
)

// MinFreeBytes is the free space a work or output directory must offer.
const MinFreeBytes = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the directory checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	dirs := []struct{ name, path string }{
		{"Work directory", cfg.Paths.WorkDir},
		{"Output directory", cfg.Paths.OutputDir},
	}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		access := CheckDirectoryAccess(dir.name, dir.path)
		results = append(results, access)
		if access.Passed {
			results = append(results, CheckFreeSpace(dir.name+" space", dir.path, MinFreeBytes))
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
