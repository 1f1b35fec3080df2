package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rollbar/rollbar-go"
)

// SetupRollbar configures the Rollbar SDK if the access token is present.
// It returns whether Rollbar was enabled and a cleanup function that flushes
// pending items.
func SetupRollbar(logger *slog.Logger) (bool, func()) {
	token := strings.TrimSpace(os.Getenv("ROLLBAR_ACCESS_TOKEN"))
	if token == "" {
		rollbar.SetEnabled(false)
		logger.Debug("rollbar disabled", "reason", "missing access token")
		return false, func() {}
	}

	rollbar.SetEnabled(true)
	rollbar.SetToken(token)

	env := strings.TrimSpace(os.Getenv("ROLLBAR_ENVIRONMENT"))
	if env == "" {
		env = "production"
	}
	rollbar.SetEnvironment(env)

	if codeVersion := strings.TrimSpace(os.Getenv("ROLLBAR_CODE_VERSION")); codeVersion != "" {
		rollbar.SetCodeVersion(codeVersion)
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		rollbar.SetServerHost(hostname)
	}
	if wd, err := os.Getwd(); err == nil {
		rollbar.SetServerRoot(filepath.Clean(wd))
	}

	logger.Info("rollbar enabled", "environment", env)
	return true, rollbar.Wait
}

// CapturePanic reports panics to Rollbar when enabled, then re-panics.
func CapturePanic(logger *slog.Logger, enabled bool) func() {
	if !enabled {
		return func() {}
	}
	return func() {
		if rec := recover(); rec != nil {
			switch err := rec.(type) {
			case error:
				rollbar.Critical(err)
			default:
				rollbar.Critical(fmt.Errorf("panic: %v", rec))
			}
			logger.Error("panic captured", "panic", rec)
			rollbar.Wait()
			panic(rec)
		}
	}
}

// ReportError sends a non-fatal error with run context.
func ReportError(enabled bool, err error, fields map[string]interface{}) {
	if !enabled || err == nil {
		return
	}
	rollbar.Error(err, fields)
}

// RunFailure describes a failed run for error reporting.
type RunFailure struct {
	RunID  string
	Failed []string
}

func (f RunFailure) Error() string {
	return fmt.Sprintf("run %s failed: %s", f.RunID, strings.Join(f.Failed, ", "))
}

// ReportRunFailure sends a warning for a failed run.
func ReportRunFailure(enabled bool, f RunFailure) {
	if !enabled {
		return
	}
	var err error = f
	if len(f.Failed) == 0 {
		err = errors.New("run " + f.RunID + " failed")
	}
	rollbar.Warning(err, map[string]interface{}{"run_id": f.RunID, "failed_checks": f.Failed})
}
