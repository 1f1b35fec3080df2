package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/osbits/fcheck/internal/checks"
	"github.com/osbits/fcheck/internal/config"
	"github.com/osbits/fcheck/internal/queue"
)

// Options configures a Runner. It is read-only once the runner is built.
type Options struct {
	// Verbose embeds underlying errors in error records.
	Verbose bool
	// DefaultTimeout applies when neither the action nor the definition
	// defaults set a timeout.
	DefaultTimeout time.Duration
	Bus            queue.Bus
	Logger         *slog.Logger
	// Shell overrides the process interpreter, mainly for tests.
	Shell []string
	// Clock overrides time.Now.
	Clock func() time.Time
	// NewID overrides run id generation.
	NewID func() string
}

// Runner drives setup, main checks and teardown of a definition.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Runner{opts: opts, logger: opts.Logger}
}

// Run executes def. Versions are validated before anything runs; a
// definition with an unsupported version returns an error wrapping
// config.ErrUnsupportedVersion and no result. Action failures never
// produce an error, they are recorded in the result.
func (r *Runner) Run(ctx context.Context, def *config.RunDefinition) (RunResult, error) {
	if err := def.CheckVersions(); err != nil {
		return RunResult{}, err
	}

	res := RunResult{
		RunID:     r.opts.NewID(),
		Tests:     []checks.CheckResult{},
		StartedAt: r.opts.Clock().UTC(),
	}
	logger := r.logger.With("run_id", res.RunID)
	exec := checks.NewExecutor(checks.Options{
		Verbose:        r.opts.Verbose,
		DefaultTimeout: r.defaultTimeout(def),
		Shell:          r.opts.Shell,
		Bus:            r.opts.Bus,
		Logger:         logger,
	})

	logger.Info("run started", "tests", len(def.Tests), "setup", def.Setup != nil, "teardown", def.Teardown != nil)

	setupFailed := false
	if def.Setup != nil {
		setup := exec.RunCheck(ctx, *def.Setup)
		res.Setup = &setup
		setupFailed = setup.Failed()
		logger.Info("phase finished", "phase", "setup", "result", setup.Result)
	}

	if setupFailed {
		logger.Warn("setup failed, skipping main checks", "skipped", len(def.Tests))
	} else {
		for _, check := range def.Tests {
			res.Tests = append(res.Tests, exec.RunCheck(ctx, check))
		}
		logger.Info("phase finished", "phase", "test", "checks", len(res.Tests))
	}

	if def.Teardown != nil {
		teardown := exec.RunCheck(context.WithoutCancel(ctx), *def.Teardown)
		res.Teardown = &teardown
		logger.Info("phase finished", "phase", "teardown", "result", teardown.Result)
	}

	res.Result = checks.Success
	if setupFailed {
		res.Result = checks.Failure
	}
	for _, t := range res.Tests {
		if t.Failed() {
			res.Result = checks.Failure
		}
	}
	res.CompletedAt = r.opts.Clock().UTC()
	logger.Info("run finished", "result", res.Result, "duration", res.Duration().Round(time.Millisecond))
	return res, nil
}

func (r *Runner) defaultTimeout(def *config.RunDefinition) time.Duration {
	if def.Defaults.Timeout.Duration > 0 {
		return def.Defaults.Timeout.Duration
	}
	return r.opts.DefaultTimeout
}
