package preflight

import (
	"context"

	"jimaku/internal/config"
	"jimaku/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// MinFreeWorkBytes is the free space the work directory needs for an
// extracted audio track and its chunks.
const MinFreeWorkBytes = 512 << 20

// RunAll executes the local checks a run needs: directories, free space and
// the ffmpeg/ffprobe binaries. It does not contact the backend.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeWorkBytes),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, FromDependency(status))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// FromDependency converts a dependency status into a check result.
func FromDependency(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available || status.Optional}
	switch {
	case status.Available && status.Version != "":
		result.Detail = status.Version
	case status.Available:
		result.Detail = status.Path
	case status.Optional:
		result.Detail = status.Detail + " (optional)"
	default:
		result.Detail = status.Detail
	}
	return result
}
