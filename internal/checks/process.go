package checks

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/osbits/fcheck/internal/config"
)

func (e *Executor) runProcess(ctx context.Context, a config.ProcessAction) (string, error) {
	args := append(append([]string(nil), e.opts.Shell[1:]...), a.Command)
	cmd := exec.CommandContext(ctx, e.opts.Shell[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = e.opts.WaitDelay
	configureProcess(cmd)

	if err := cmd.Run(); err != nil {
		return "", &ProcessError{
			Command:  a.Command,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Canceled: errors.Is(ctx.Err(), context.Canceled),
			Err:      err,
		}
	}
	return decodeText(stdout.Bytes()), nil
}
