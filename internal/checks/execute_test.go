//go:build !windows

package checks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osbits/fcheck/internal/config"
	"github.com/osbits/fcheck/internal/queue"
)

func testExecutor(opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewExecutor(opts)
}

func processGroup(name, command string) config.ActionGroup {
	return config.ActionGroup{Name: name, Action: config.ProcessAction{Command: command}}
}

func TestExecuteProcessCapturesOutput(t *testing.T) {
	res := testExecutor(Options{}).Execute(context.Background(), 0, processGroup("", "echo Hello; echo hello"))
	if res.Result != Success {
		t.Fatalf("expected success, got %s (%+v)", res.Result, res.Error)
	}
	if res.Output != "Hello\nhello\n" {
		t.Fatalf("unexpected output %q", res.Output)
	}
	if res.Name != "#1" {
		t.Fatalf("expected positional name, got %q", res.Name)
	}
	if res.Command != "echo Hello; echo hello" || res.Kind != config.KindProcess {
		t.Fatalf("unexpected identity: %+v", res)
	}
}

func TestExecuteProcessNonZeroExit(t *testing.T) {
	res := testExecutor(Options{}).Execute(context.Background(), 0, processGroup("fail", "echo out; echo err >&2; exit 3"))
	if res.Result != Failure || res.Error == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	rec := res.Error
	if rec.Kind != KindExit {
		t.Fatalf("expected exit kind, got %s", rec.Kind)
	}
	if rec.Process == nil || rec.Process.ExitCode == nil || *rec.Process.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %+v", rec.Process)
	}
	if rec.Process.Stdout != "out\n" || rec.Process.Stderr != "err\n" {
		t.Fatalf("unexpected captured streams: %+v", rec.Process)
	}
	if res.Output != "" {
		t.Fatalf("expected no success output on failure, got %q", res.Output)
	}
}

func TestExecuteProcessTimeout(t *testing.T) {
	group := processGroup("slow", "sleep 5")
	group.Timeout = 100 * time.Millisecond

	start := time.Now()
	res := testExecutor(Options{}).Execute(context.Background(), 0, group)
	elapsed := time.Since(start)

	if res.Result != Failure || res.Error == nil || res.Error.Kind != KindTimeout {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("timeout did not stop the process promptly: %s", elapsed)
	}
}

func TestExecuteUsesDefaultTimeout(t *testing.T) {
	res := testExecutor(Options{DefaultTimeout: 100 * time.Millisecond}).Execute(context.Background(), 0, processGroup("slow", "sleep 5"))
	if res.Error == nil || res.Error.Kind != KindTimeout {
		t.Fatalf("expected default timeout to apply, got %+v", res)
	}
}

func TestExecuteProcessKilledBySignal(t *testing.T) {
	res := testExecutor(Options{}).Execute(context.Background(), 0, processGroup("sig", "kill -TERM $$"))
	if res.Error == nil || res.Error.Kind != KindSignal {
		t.Fatalf("expected signal failure, got %+v", res.Error)
	}
	if res.Error.Process.Signal == "" {
		t.Fatalf("expected signal name to be recorded")
	}
}

func TestExecuteProcessSpawnFailure(t *testing.T) {
	e := testExecutor(Options{Shell: []string{"/nonexistent/fcheck-shell", "-c"}})
	res := e.Execute(context.Background(), 0, processGroup("spawn", "true"))
	if res.Error == nil || res.Error.Kind != KindSpawn {
		t.Fatalf("expected spawn failure, got %+v", res.Error)
	}
}

func TestExecuteDisabledHasNoSideEffect(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	group := processGroup("touch", "touch "+marker)
	group.Disabled = true

	res := testExecutor(Options{}).Execute(context.Background(), 0, group)
	if res.Result != Disabled {
		t.Fatalf("expected disabled, got %s", res.Result)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("disabled action must not run, stat err=%v", err)
	}
}

func TestExecuteFileCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	res := testExecutor(Options{}).Execute(context.Background(), 0, config.ActionGroup{Action: config.FileCopyAction{From: src, To: dst}})
	if res.Result != Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestExecuteFileCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")
	group := config.ActionGroup{Action: config.FileCopyAction{From: filepath.Join(dir, "missing.txt"), To: dst}}

	res := testExecutor(Options{}).Execute(context.Background(), 0, group)
	if res.Result != Failure || res.Error == nil || res.Error.Kind != KindIO {
		t.Fatalf("expected io failure, got %+v", res)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no partial file at destination, found %d entries", len(entries))
	}
}

func TestExecuteFileCopyUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	group := config.ActionGroup{Action: config.FileCopyAction{From: src, To: filepath.Join(dir, "no", "such", "dir", "dst.txt")}}
	res := testExecutor(Options{}).Execute(context.Background(), 0, group)
	if res.Error == nil || res.Error.Kind != KindIO {
		t.Fatalf("expected io failure, got %+v", res.Error)
	}
}

func TestExecuteMessageWriteThenRead(t *testing.T) {
	bus := queue.NewMemoryBus()
	e := testExecutor(Options{Bus: bus})

	write := config.ActionGroup{Name: "produce", Action: config.MessageWriteAction{Host: "h", Topic: "t", Messages: []string{"one", "two"}}}
	if res := e.Execute(context.Background(), 0, write); res.Result != Success {
		t.Fatalf("write failed: %+v", res.Error)
	}
	if got := bus.Messages("h", "t"); len(got) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(got))
	}

	read := config.ActionGroup{Name: "consume", Timeout: time.Second, Action: config.MessageReadAction{Host: "h", Topic: "t", Offset: "earliest"}}
	res := e.Execute(context.Background(), 1, read)
	if res.Result != Success || res.Output != "one" {
		t.Fatalf("expected first message, got %+v", res)
	}
}

func TestExecuteMessageReadTimeout(t *testing.T) {
	e := testExecutor(Options{Bus: queue.NewMemoryBus()})
	group := config.ActionGroup{Timeout: 50 * time.Millisecond, Action: config.MessageReadAction{Host: "h", Topic: "t", Offset: "latest"}}
	res := e.Execute(context.Background(), 0, group)
	if res.Error == nil || res.Error.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %+v", res.Error)
	}
	if res.Error.Transport == nil || res.Error.Transport.Op != "read" {
		t.Fatalf("expected transport payload, got %+v", res.Error.Transport)
	}
}

func TestExecuteMessageWriteTransportError(t *testing.T) {
	bus := queue.NewMemoryBus()
	bus.PublishErr = errors.New("broker unavailable")
	res := testExecutor(Options{Bus: bus}).Execute(context.Background(), 0, config.ActionGroup{Action: config.MessageWriteAction{Host: "h", Topic: "t", Messages: []string{"m"}}})
	if res.Error == nil || res.Error.Kind != KindTransport {
		t.Fatalf("expected transport failure, got %+v", res.Error)
	}
}

func TestExecuteWithoutBus(t *testing.T) {
	res := testExecutor(Options{}).Execute(context.Background(), 0, config.ActionGroup{Action: config.MessageWriteAction{Host: "h", Topic: "t", Messages: []string{"m"}}})
	if res.Error == nil || res.Error.Kind != KindTransport {
		t.Fatalf("expected transport failure, got %+v", res.Error)
	}
}

type panickingBus struct{}

func (panickingBus) Publish(context.Context, string, string, []string) error {
	panic("client exploded")
}

func (panickingBus) ReadOne(context.Context, string, string, queue.StartOffset) (queue.Message, error) {
	return queue.Message{}, nil
}

func TestExecuteRecoversFromPanics(t *testing.T) {
	res := testExecutor(Options{Bus: panickingBus{}}).Execute(context.Background(), 0, config.ActionGroup{Action: config.MessageWriteAction{Host: "h", Topic: "t", Messages: []string{"m"}}})
	if res.Result != Failure || res.Error == nil {
		t.Fatalf("expected failure after panic, got %+v", res)
	}
}

func TestPostDelayObservedAfterFailure(t *testing.T) {
	group := processGroup("fail", "exit 1")
	group.Delay = 150 * time.Millisecond

	start := time.Now()
	res := testExecutor(Options{}).Execute(context.Background(), 0, group)
	if res.Result != Failure {
		t.Fatalf("delay must not mask the failure, got %s", res.Result)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected post-delay to be observed, elapsed %s", elapsed)
	}
}

func TestPostDelaySkippedWhenRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	group := processGroup("noop", "true")
	group.Delay = 2 * time.Second

	start := time.Now()
	res := testExecutor(Options{}).Execute(ctx, 0, group)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("delay should be skipped on canceled run, elapsed %s", elapsed)
	}
	if res.Error == nil || res.Error.Kind != KindCanceled {
		t.Fatalf("expected canceled failure, got %+v", res.Error)
	}
}

func TestDelayOnlyAction(t *testing.T) {
	group := config.ActionGroup{Action: config.DelayAction{}, Delay: 50 * time.Millisecond}
	start := time.Now()
	res := testExecutor(Options{}).Execute(context.Background(), 0, group)
	if res.Result != Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("expected delay to be observed")
	}
}

func TestExpectations(t *testing.T) {
	e := testExecutor(Options{})

	pass := processGroup("json", `echo '{"status":"ok","count":2}'`)
	pass.Expect = []config.Assertion{
		{Kind: "jsonpath", Path: "$.status", Op: "equals", Value: "ok"},
		{Kind: "jsonpath", Path: "$.count", Op: "exists"},
		{Kind: "contains", Value: "status"},
		{Kind: "regex", Value: `"count":\d+`},
	}
	if res := e.Execute(context.Background(), 0, pass); res.Result != Success {
		t.Fatalf("expected expectations to pass, got %+v", res.Error)
	}

	fail := processGroup("text", "echo hello")
	fail.Expect = []config.Assertion{{Kind: "contains", Value: "goodbye"}}
	res := e.Execute(context.Background(), 0, fail)
	if res.Error == nil || res.Error.Kind != KindAssertion {
		t.Fatalf("expected assertion failure, got %+v", res.Error)
	}
	if len(res.Error.Assertions) != 1 || res.Error.Assertions[0].Passed {
		t.Fatalf("expected failed assertion details, got %+v", res.Error.Assertions)
	}
}
