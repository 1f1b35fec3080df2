package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osbits/fcheck/internal/config"
	"github.com/osbits/fcheck/internal/notifier"
	"github.com/osbits/fcheck/internal/observability"
	"github.com/osbits/fcheck/internal/queue"
	"github.com/osbits/fcheck/internal/render"
	"github.com/osbits/fcheck/internal/report"
	"github.com/osbits/fcheck/internal/runner"
	"github.com/osbits/fcheck/internal/storage"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

type options struct {
	configPath       string
	reportPath       string
	verboseErrors    bool
	envFile          string
	historyPath      string
	historyRetention int
	metricsPath      string
	logLevel         string
	logFormat        string
	noColor          bool
	defaultTimeout   time.Duration
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	defaultConfig := os.Getenv("FCHECK_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "./config/config.toml"
	}
	fs := flag.NewFlagSet("fcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", defaultConfig, "path to check definition (.toml, .yml, .yaml)")
	fs.StringVar(&opts.reportPath, "report", "./output/report.json", "path of the JSON report")
	fs.BoolVar(&opts.verboseErrors, "verbose-errors", false, "embed underlying errors in the report")
	fs.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	fs.StringVar(&opts.historyPath, "history", "", "sqlite database recording run history")
	fs.IntVar(&opts.historyRetention, "history-retention", 50, "number of runs kept in history")
	fs.StringVar(&opts.metricsPath, "metrics-file", "", "write Prometheus textfile metrics to this path")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", "json", "log format: json, text")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colors in the console summary")
	fs.DurationVar(&opts.defaultTimeout, "default-timeout", 0, "timeout for actions without one (0 means none)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitConfig
	}

	logger := observability.NewLogger(opts.logLevel, opts.logFormat, stderr)
	slog.SetDefault(logger)

	if err := observability.LoadDotEnv(logger, opts.envFile); err != nil {
		logger.Error("failed to load env file", "error", err)
		return exitConfig
	}

	rollbarEnabled, flush := observability.SetupRollbar(logger)
	defer flush()
	defer observability.CapturePanic(logger, rollbarEnabled)()

	def, registry, err := loadDefinition(opts.configPath)
	if err != nil {
		logger.Error("invalid check definition", "config", opts.configPath, "error", err)
		observability.ReportError(rollbarEnabled, err, map[string]interface{}{"config": opts.configPath})
		return exitConfig
	}

	bus := queue.NewKafkaBus("fcheck")
	r := runner.New(runner.Options{
		Verbose:        opts.verboseErrors,
		DefaultTimeout: opts.defaultTimeout,
		Bus:            bus,
		Logger:         logger,
	})

	ctx, cancel := signalContext(logger)
	defer cancel()

	res, err := r.Run(ctx, def)
	if err != nil {
		logger.Error("run rejected", "error", err)
		if errors.Is(err, config.ErrInvalid) {
			return exitConfig
		}
		return exitFailed
	}

	console := report.NewConsole(stdout, opts.noColor)
	if err := console.Print(res); err != nil {
		logger.Warn("failed to print summary", "error", err)
	}

	code := exitOK
	if res.Failed() {
		code = exitFailed
		observability.ReportRunFailure(rollbarEnabled, observability.RunFailure{RunID: res.RunID, Failed: res.FailedChecks()})
	}

	if err := report.WriteJSON(opts.reportPath, res); err != nil {
		logger.Error("failed to write report", "path", opts.reportPath, "error", err)
		code = exitFailed
	} else {
		console.Written(opts.reportPath)
	}

	if opts.metricsPath != "" {
		if err := report.WriteMetrics(opts.metricsPath, res); err != nil {
			logger.Warn("failed to write metrics", "path", opts.metricsPath, "error", err)
		}
	}

	// Bookkeeping outlives an interrupted run.
	postCtx, postCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer postCancel()

	var store *storage.Store
	if opts.historyPath != "" {
		store, err = storage.Open(opts.historyPath, storage.Options{RunRetention: opts.historyRetention})
		if err != nil {
			logger.Warn("failed to open history", "path", opts.historyPath, "error", err)
		} else {
			defer store.Close()
			if err := store.RecordRun(postCtx, res); err != nil {
				logger.Warn("failed to record run", "error", err)
			}
		}
	}

	event := notifier.EventFromRun(res, opts.reportPath)
	for _, d := range registry.Dispatch(postCtx, def.Notify, event, logger) {
		entry := storage.NotificationLog{NotifierID: d.NotifierID, RunID: res.RunID, Status: event.Status, Summary: event.Summary}
		if d.Err != nil {
			entry.Error = d.Err.Error()
		}
		if err := store.RecordNotification(postCtx, entry); err != nil {
			logger.Warn("failed to record notification", "notifier", d.NotifierID, "error", err)
		}
	}

	return code
}

// loadDefinition reads, resolves and renders the definition and builds its
// notifiers. Every error it returns is a configuration error.
func loadDefinition(path string) (*config.RunDefinition, *notifier.Registry, error) {
	def, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	secrets, err := def.ResolveSecrets()
	if err != nil {
		return nil, nil, err
	}
	engine := render.New()
	if err := def.Render(engine, secrets); err != nil {
		return nil, nil, err
	}
	registry, err := notifier.Build(notifier.Factory{Secrets: secrets, Render: engine}, def.Notifiers)
	if err != nil {
		return nil, nil, err
	}
	return def, registry, nil
}

func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signals:
			logger.Warn("shutdown signal received, finishing with teardown", "signal", fmt.Sprint(sig))
			signal.Stop(signals)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(signals)
		cancel()
	}
}
