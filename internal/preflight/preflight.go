package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediabot/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes(cfg)),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckBinaries(ctx, cfg))
	return results
}

// MinFreeBytes is the free space required in the work directory: room for one
// maximum-size download plus its watermarked copy.
func MinFreeBytes(cfg *config.Config) uint64 {
	if cfg == nil || cfg.Quota.MaxPayloadBytes <= 0 {
		return 0
	}
	return uint64(cfg.Quota.MaxPayloadBytes) * 2
}

// Err joins the failed results into one error, or returns nil.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	return errors.Join(errs...)
}
