package runner

import (
	"time"

	"github.com/osbits/fcheck/internal/checks"
)

// RunResult is the report tree of one run.
type RunResult struct {
	RunID       string               `json:"runId"`
	Result      checks.Outcome       `json:"result"`
	Setup       *checks.CheckResult  `json:"setup,omitempty"`
	Tests       []checks.CheckResult `json:"tests"`
	Teardown    *checks.CheckResult  `json:"teardown,omitempty"`
	StartedAt   time.Time            `json:"startedAt"`
	CompletedAt time.Time            `json:"completedAt"`
}

// Failed reports whether the run verdict is failure.
func (r RunResult) Failed() bool {
	return r.Result == checks.Failure
}

// FailedChecks lists the names of failed checks, setup first. Teardown is
// included when it failed even though it does not affect the verdict.
func (r RunResult) FailedChecks() []string {
	var names []string
	if r.Setup != nil && r.Setup.Failed() {
		names = append(names, r.Setup.Name)
	}
	for _, t := range r.Tests {
		if t.Failed() {
			names = append(names, t.Name)
		}
	}
	if r.Teardown != nil && r.Teardown.Failed() {
		names = append(names, r.Teardown.Name)
	}
	return names
}

// Duration is the wall time of the run.
func (r RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
