package checks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/osbits/fcheck/internal/config"
)

type panickyError struct{}

func (panickyError) Error() string { panic("stream handle missing") }

func TestNormalizeVerbosityControlsRawError(t *testing.T) {
	err := fmt.Errorf("copy: %w", &fs.PathError{Op: "open", Path: "/missing", Err: fs.ErrNotExist})

	quiet := Normalize(err, false)
	if quiet.Kind != KindIO {
		t.Fatalf("expected io kind, got %s", quiet.Kind)
	}
	if quiet.Raw != nil {
		t.Fatalf("expected raw error to be omitted, got %+v", quiet.Raw)
	}
	if quiet.Notice != VerboseNotice {
		t.Fatalf("expected placeholder notice, got %q", quiet.Notice)
	}
	if quiet.IO == nil || quiet.IO.Path != "/missing" {
		t.Fatalf("expected io payload, got %+v", quiet.IO)
	}

	loud := Normalize(err, true)
	if loud.Raw == nil {
		t.Fatalf("expected raw error in verbose mode")
	}
	if loud.Notice != "" {
		t.Fatalf("expected no notice in verbose mode, got %q", loud.Notice)
	}
	if len(loud.Raw.Chain) < 2 {
		t.Fatalf("expected unwrap chain, got %v", loud.Raw.Chain)
	}
}

func TestNormalizeFallsBackOnExtractionPanic(t *testing.T) {
	rec := Normalize(panickyError{}, false)
	if rec.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %s", rec.Kind)
	}
	if rec.Raw == nil || rec.Raw.Type != "checks.panickyError" {
		t.Fatalf("expected minimal record with raw failure, got %+v", rec.Raw)
	}
}

func TestNormalizeClassifiesKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"config", fmt.Errorf("%w: bad", config.ErrInvalid), KindConfig},
		{"transport", &TransportError{Op: "write", Host: "h", Topic: "t", Err: errors.New("broker down")}, KindTransport},
		{"transport timeout", &TransportError{Op: "read", Host: "h", Topic: "t", Err: context.DeadlineExceeded}, KindTimeout},
		{"assertion", &AssertionError{Results: []AssertionResult{{Kind: "contains", Message: "nope"}}}, KindAssertion},
		{"link", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: fs.ErrPermission}, KindIO},
		{"unknown", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Normalize(tc.err, false)
			if rec.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, rec.Kind)
			}
			if rec.Message == "" {
				t.Fatalf("expected message to be set")
			}
		})
	}
}

func TestNormalizeNilError(t *testing.T) {
	if rec := Normalize(nil, true); rec.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %s", rec.Kind)
	}
}
