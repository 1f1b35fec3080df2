package checks

import (
	"context"
	"sync"
	"time"

	"github.com/osbits/fcheck/internal/config"
)

// RunCheck runs every action group of check and decides its outcome.
// Sequential checks continue past failed actions. Parallel checks join on
// all actions before reporting; results keep declaration order either way.
func (e *Executor) RunCheck(ctx context.Context, check config.CheckDefinition) CheckResult {
	res := CheckResult{Name: check.Name, Results: []ActionResult{}}
	logger := e.opts.Logger.With("check", check.Name)
	if check.Disabled {
		res.Result = Disabled
		logger.Info("check disabled")
		return res
	}

	start := time.Now()
	results := make([]ActionResult, len(check.Commands))
	if check.Parallel {
		var wg sync.WaitGroup
		for i, group := range check.Commands {
			wg.Add(1)
			go func(i int, group config.ActionGroup) {
				defer wg.Done()
				results[i] = e.Execute(ctx, i, group)
			}(i, group)
		}
		wg.Wait()
	} else {
		for i, group := range check.Commands {
			results[i] = e.Execute(ctx, i, group)
		}
	}

	res.Results = results
	res.Result = Success
	failed := 0
	for _, r := range results {
		if r.Result == Failure {
			failed++
		}
	}
	if failed > 0 {
		res.Result = Failure
	}
	logger.Info("check finished",
		"result", res.Result,
		"actions", len(results),
		"failed", failed,
		"parallel", check.Parallel,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res
}
