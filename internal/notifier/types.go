package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/osbits/fcheck/internal/checks"
	"github.com/osbits/fcheck/internal/render"
	"github.com/osbits/fcheck/internal/runner"
)

// Event is the run verdict delivered to notifiers.
type Event struct {
	RunID       string
	Status      string // success, failure
	Summary     string
	FailedTests []string
	Tests       int
	Duration    time.Duration
	ReportPath  string
	OccurredAt  time.Time
}

// Notifier represents a delivery mechanism.
type Notifier interface {
	ID() string
	Notify(ctx context.Context, event Event) error
}

// Factory carries what notifier constructors need.
type Factory struct {
	Secrets map[string]string
	Render  *render.Engine
}

// EventFromRun builds the notification event of a finished run.
func EventFromRun(res runner.RunResult, reportPath string) Event {
	failed := res.FailedChecks()
	passed, enabled := 0, 0
	for _, t := range res.Tests {
		if t.Result == checks.Disabled {
			continue
		}
		enabled++
		if !t.Failed() {
			passed++
		}
	}
	summary := fmt.Sprintf("%d/%d checks passed", passed, enabled)
	if res.Setup != nil && res.Setup.Failed() {
		summary = fmt.Sprintf("setup %q failed, checks skipped", res.Setup.Name)
	} else if len(failed) > 0 {
		summary += ", failed: " + strings.Join(failed, ", ")
	}
	return Event{
		RunID:       res.RunID,
		Status:      string(res.Result),
		Summary:     summary,
		FailedTests: failed,
		Tests:       len(res.Tests),
		Duration:    res.Duration(),
		ReportPath:  reportPath,
		OccurredAt:  res.CompletedAt,
	}
}

func (e Event) templateData() map[string]interface{} {
	return map[string]interface{}{
		"run_id":      e.RunID,
		"status":      e.Status,
		"summary":     e.Summary,
		"failed":      e.FailedTests,
		"tests":       e.Tests,
		"duration_ms": e.Duration.Milliseconds(),
		"report":      e.ReportPath,
		"occurred_at": e.OccurredAt.Format(time.RFC3339),
	}
}
