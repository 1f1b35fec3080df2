package checks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/osbits/fcheck/internal/config"
)

// ErrorKind discriminates ErrorRecord payloads.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindExit      ErrorKind = "exit"
	KindSignal    ErrorKind = "signal"
	KindSpawn     ErrorKind = "spawn"
	KindIO        ErrorKind = "io"
	KindTransport ErrorKind = "transport"
	KindAssertion ErrorKind = "assertion"
	KindCanceled  ErrorKind = "canceled"
	KindConfig    ErrorKind = "config"
	KindUnknown   ErrorKind = "unknown"
)

// VerboseNotice replaces the raw error when verbose errors are off.
const VerboseNotice = "underlying error omitted, rerun with -verbose-errors to include it"

// ErrorRecord is the serializable form of an action failure. Which payload
// field is set depends on Kind.
type ErrorRecord struct {
	Kind       ErrorKind         `json:"kind"`
	Message    string            `json:"message"`
	Process    *ProcessFailure   `json:"process,omitempty"`
	IO         *IOFailure        `json:"io,omitempty"`
	Transport  *TransportFailure `json:"transport,omitempty"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
	Raw        *RawError         `json:"raw,omitempty"`
	Notice     string            `json:"notice,omitempty"`
}

// ProcessFailure is the payload of exit, signal, spawn and process timeout records.
type ProcessFailure struct {
	ExitCode *int   `json:"exitCode,omitempty"`
	Signal   string `json:"signal,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// IOFailure is the payload of io records.
type IOFailure struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

// TransportFailure is the payload of message queue records.
type TransportFailure struct {
	Op    string `json:"op"`
	Host  string `json:"host"`
	Topic string `json:"topic"`
}

// RawError embeds the underlying error in verbose mode.
type RawError struct {
	Type  string   `json:"type"`
	Text  string   `json:"text"`
	Chain []string `json:"chain,omitempty"`
}

// ProcessError is returned by process actions.
type ProcessError struct {
	Command  string
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Canceled bool
	Err      error
}

func (e *ProcessError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("command %q timed out: %v", e.Command, e.Err)
	case e.Canceled:
		return fmt.Sprintf("command %q canceled: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// TransportError is returned by message actions.
type TransportError struct {
	Op    string
	Host  string
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s@%s: %v", e.Op, e.Topic, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AssertionError is returned when output expectations fail.
type AssertionError struct {
	Results []AssertionResult
}

func (e *AssertionError) Error() string {
	var failed []string
	for _, r := range e.Results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Kind, r.Message))
		}
	}
	return "expectation failed: " + strings.Join(failed, "; ")
}

// Normalize converts an action failure into an ErrorRecord. It never panics:
// if extraction fails, a minimal record holding only the raw failure is returned.
func Normalize(err error, verbose bool) (rec ErrorRecord) {
	if err == nil {
		return ErrorRecord{Kind: KindUnknown, Message: "unknown error"}
	}
	defer func() {
		if r := recover(); r != nil {
			rec = ErrorRecord{
				Kind:    KindUnknown,
				Message: safeText(err),
				Raw:     &RawError{Type: fmt.Sprintf("%T", err), Text: safeText(err)},
			}
		}
	}()

	rec = classify(err)
	rec.Message = err.Error()
	if verbose {
		rec.Raw = rawError(err)
	} else {
		rec.Notice = VerboseNotice
	}
	return rec
}

func classify(err error) ErrorRecord {
	var assertErr *AssertionError
	if errors.As(err, &assertErr) {
		return ErrorRecord{Kind: KindAssertion, Assertions: append([]AssertionResult(nil), assertErr.Results...)}
	}

	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return classifyProcess(procErr)
	}

	var transErr *TransportError
	if errors.As(err, &transErr) {
		rec := ErrorRecord{
			Kind:      KindTransport,
			Transport: &TransportFailure{Op: transErr.Op, Host: transErr.Host, Topic: transErr.Topic},
		}
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			rec.Kind = KindTimeout
		case errors.Is(err, context.Canceled):
			rec.Kind = KindCanceled
		}
		return rec
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorRecord{Kind: KindTimeout}
	case errors.Is(err, context.Canceled):
		return ErrorRecord{Kind: KindCanceled}
	case errors.Is(err, config.ErrInvalid):
		return ErrorRecord{Kind: KindConfig}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrorRecord{Kind: KindIO, IO: &IOFailure{Op: pathErr.Op, Path: pathErr.Path}}
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return ErrorRecord{Kind: KindIO, IO: &IOFailure{Op: linkErr.Op, Path: linkErr.New}}
	}
	return ErrorRecord{Kind: KindUnknown}
}

func classifyProcess(procErr *ProcessError) ErrorRecord {
	failure := &ProcessFailure{
		Stdout: decodeText(procErr.Stdout),
		Stderr: decodeText(procErr.Stderr),
	}
	rec := ErrorRecord{Process: failure}

	var exitErr *exec.ExitError
	hasExit := errors.As(procErr.Err, &exitErr)
	if hasExit && exitErr.ProcessState != nil {
		if sig := exitSignal(exitErr.ProcessState); sig != "" {
			failure.Signal = sig
		} else {
			code := exitErr.ExitCode()
			failure.ExitCode = &code
		}
	}

	switch {
	case procErr.TimedOut:
		rec.Kind = KindTimeout
	case procErr.Canceled:
		rec.Kind = KindCanceled
	case !hasExit:
		rec.Kind = KindSpawn
	case failure.Signal != "":
		rec.Kind = KindSignal
	default:
		rec.Kind = KindExit
	}
	return rec
}

func rawError(err error) *RawError {
	raw := &RawError{Type: fmt.Sprintf("%T", err), Text: err.Error()}
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(next) {
		raw.Chain = append(raw.Chain, fmt.Sprintf("%T: %s", next, next.Error()))
	}
	return raw
}

func safeText(err error) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("%T (error text unavailable: %v)", err, r)
		}
	}()
	return err.Error()
}

func decodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
