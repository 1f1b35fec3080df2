package checks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/osbits/fcheck/internal/config"
)

// Outcome classifies an action, a check or a run.
type Outcome string

const (
	Success  Outcome = "success"
	Failure  Outcome = "failure"
	Disabled Outcome = "disabled"
)

// ActionResult captures the outcome of a single action group.
type ActionResult struct {
	Name     string
	Kind     config.ActionKind
	Result   Outcome
	Command  string
	Output   string
	Error    *ErrorRecord
	Duration time.Duration
}

// CheckResult captures the outcome of one check, actions in declaration order.
type CheckResult struct {
	Name    string         `json:"name"`
	Result  Outcome        `json:"result"`
	Results []ActionResult `json:"results"`
}

// Failed reports whether the check counts against the run.
func (c CheckResult) Failed() bool {
	return c.Result == Failure
}

// AssertionResult captures the outcome of a single output expectation.
type AssertionResult struct {
	Kind    string `json:"kind"`
	Op      string `json:"op,omitempty"`
	Path    string `json:"path,omitempty"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

type actionResultJSON struct {
	Name       string            `json:"commandName"`
	Kind       config.ActionKind `json:"commandKind,omitempty"`
	Result     Outcome           `json:"commandResult"`
	Command    string            `json:"commandCommand"`
	Output     json.RawMessage   `json:"commandOutput"`
	DurationMs int64             `json:"commandDurationMs"`
}

// MarshalJSON writes commandOutput as a string on success and as an error
// record object on failure.
func (r ActionResult) MarshalJSON() ([]byte, error) {
	var (
		output []byte
		err    error
	)
	if r.Error != nil {
		output, err = json.Marshal(r.Error)
	} else {
		output, err = json.Marshal(r.Output)
	}
	if err != nil {
		return nil, fmt.Errorf("encode output of %q: %w", r.Name, err)
	}
	return json.Marshal(actionResultJSON{
		Name:       r.Name,
		Kind:       r.Kind,
		Result:     r.Result,
		Command:    r.Command,
		Output:     output,
		DurationMs: r.Duration.Milliseconds(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ActionResult) UnmarshalJSON(data []byte) error {
	var raw actionResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ActionResult{
		Name:     raw.Name,
		Kind:     raw.Kind,
		Result:   raw.Result,
		Command:  raw.Command,
		Duration: time.Duration(raw.DurationMs) * time.Millisecond,
	}
	trimmed := bytes.TrimSpace(raw.Output)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '{':
		var rec ErrorRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return fmt.Errorf("decode error record: %w", err)
		}
		r.Error = &rec
	default:
		if err := json.Unmarshal(trimmed, &r.Output); err != nil {
			return fmt.Errorf("decode output: %w", err)
		}
	}
	return nil
}
