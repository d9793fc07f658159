package preflight

import (
	"errors"
	"fmt"

	"unflatten/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Request names the directories of a run.
type Request struct {
	Flattened string
	Original  string
	// Output is checked only when restoration will write to it.
	Output string
}

// RunAll executes the checks that apply to req under cfg. Missing optional
// binaries are not reported.
func RunAll(cfg *config.Config, req Request) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryReadable("Flattened tree", req.Flattened),
		CheckDirectoryReadable("Original tree", req.Original),
	}
	if req.Output != "" {
		results = append(results,
			CheckDirectoryWritable("Output root", req.Output),
			CheckOutputRoot(req.Output, req.Flattened, req.Original),
		)
	}
	if cfg.Scan.CacheEnabled {
		results = append(results, CheckDirectoryWritable("Cache directory", cfg.Paths.CacheDir))
	}
	if cfg.Report.Enabled {
		results = append(results, CheckDirectoryWritable("Data directory", cfg.Paths.DataDir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		if status.Optional && !status.Available {
			continue
		}
		res := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			res.Detail = status.Path
		}
		results = append(results, res)
	}
	return results
}

// Failed joins the details of every failed check, or returns nil.
func Failed(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	return errors.Join(errs...)
}
