package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osbits/fcheck/internal/config"
	"github.com/osbits/fcheck/internal/queue"
)

// DefaultWaitDelay bounds how long a process's pipes are drained after it is
// killed, so grandchildren holding stdout open cannot hang an action.
const DefaultWaitDelay = 2 * time.Second

// Options is the immutable run configuration shared by every action.
type Options struct {
	// Verbose embeds raw underlying errors in error records.
	Verbose bool
	// DefaultTimeout applies to groups without their own timeout. Zero means none.
	DefaultTimeout time.Duration
	// Shell is the interpreter prefix for process actions, default sh -c.
	Shell []string
	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
	// Bus serves message actions.
	Bus    queue.Bus
	Logger *slog.Logger
}

// Executor runs action groups and checks.
type Executor struct {
	opts Options
}

// NewExecutor constructs an Executor.
func NewExecutor(opts Options) *Executor {
	if len(opts.Shell) == 0 {
		opts.Shell = []string{"sh", "-c"}
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = DefaultWaitDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{opts: opts}
}

// Execute runs one action group. Failures are recorded in the result, never returned.
// index is the group's position, used as its name when it has none.
func (e *Executor) Execute(ctx context.Context, index int, group config.ActionGroup) (res ActionResult) {
	res = ActionResult{Name: group.Name}
	if res.Name == "" {
		res.Name = fmt.Sprintf("#%d", index+1)
	}
	if group.Action != nil {
		res.Kind = group.Action.Kind()
		res.Command = group.Action.Describe()
	}
	if group.Disabled {
		res.Result = Disabled
		return res
	}

	logger := e.opts.Logger.With("action", res.Name, "kind", res.Kind)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rec := Normalize(fmt.Errorf("action panicked: %v", r), e.opts.Verbose)
			res.Result = Failure
			res.Output = ""
			res.Error = &rec
			res.Duration = time.Since(start).Round(time.Millisecond)
			logger.Error("action panicked", "panic", r)
		}
	}()

	output, err := e.perform(ctx, group)
	if err == nil && len(group.Expect) > 0 {
		if results, ok := evaluateExpectations(output, group.Expect); !ok {
			err = &AssertionError{Results: results}
		}
	}
	res.Duration = time.Since(start).Round(time.Millisecond)

	if err != nil {
		rec := Normalize(err, e.opts.Verbose)
		res.Result = Failure
		res.Error = &rec
		logger.Warn("action failed", "error_kind", rec.Kind, "error", rec.Message, "duration", res.Duration)
	} else {
		res.Result = Success
		res.Output = output
		logger.Debug("action succeeded", "duration", res.Duration)
	}

	e.pause(ctx, group.Delay, logger)
	return res
}

// pause observes the post-action delay after success and ordinary failure
// alike. Only a canceled run context skips it.
func (e *Executor) pause(ctx context.Context, delay time.Duration, logger *slog.Logger) {
	if delay <= 0 || ctx.Err() != nil {
		return
	}
	logger.Debug("post-action delay", "delay", delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Executor) timeoutFor(group config.ActionGroup) time.Duration {
	if group.Timeout > 0 {
		return group.Timeout
	}
	return e.opts.DefaultTimeout
}

func (e *Executor) perform(ctx context.Context, group config.ActionGroup) (string, error) {
	if timeout := e.timeoutFor(group); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch a := group.Action.(type) {
	case config.ProcessAction:
		return e.runProcess(ctx, a)
	case config.FileCopyAction:
		return "", copyFile(ctx, a.From, a.To)
	case config.MessageWriteAction:
		return "", e.publish(ctx, a)
	case config.MessageReadAction:
		return e.consume(ctx, a)
	case config.DelayAction:
		return "", nil
	default:
		return "", fmt.Errorf("%w: unsupported action %T", config.ErrInvalid, group.Action)
	}
}
