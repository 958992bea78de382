// Package fanout runs one recipe build across multiple targets (typically
// architectures) with bounded concurrency, optionally sharing a single
// cache and catalog across the whole run.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/GhostKellz/zmake/internal/log"
	"github.com/GhostKellz/zmake/internal/pipeline"
	"github.com/GhostKellz/zmake/internal/recipe"
)

// Target is one build to run, identified by a label (e.g. an architecture
// or a recipe file path) and the Options it should run with.
type Target struct {
	Label string
	Body  []byte
	Opts  pipeline.Options
}

// TargetResult records one target's build outcome.
type TargetResult struct {
	Label    string
	Report   *pipeline.Report
	Err      error
	Duration time.Duration
}

// Summary aggregates a fan-out run.
type Summary struct {
	Results   []TargetResult
	Succeeded int
	Failed    int
}

// Run builds every target with at most concurrency builds in flight at
// once, using parseFn as the recipe front-end for all targets. A failing
// target does not cancel its siblings: every target runs to completion and
// its outcome is recorded independently, so a fan-out across architectures
// reports a full picture rather than stopping at the first failure.
func Run(ctx context.Context, targets []Target, parseFn func([]byte) (*recipe.Recipe, error), concurrency int, logger log.Logger) Summary {
	if logger == nil {
		logger = log.NewNoop()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]TargetResult, len(targets))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, target Target) {
			defer wg.Done()
			defer func() { <-sem }()

			logger.Info("starting build", "target", target.Label)
			start := time.Now()
			report, err := pipeline.Run(ctx, target.Body, parseFn, target.Opts)
			duration := time.Since(start)

			if err != nil {
				logger.Error("build failed", "target", target.Label, "error", err)
			} else {
				logger.Info("build succeeded", "target", target.Label, "duration", duration)
			}

			results[i] = TargetResult{Label: target.Label, Report: report, Err: err, Duration: duration}
		}(i, target)
	}
	wg.Wait()

	summary := Summary{Results: results}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}
