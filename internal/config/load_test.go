package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osbits/fcheck/internal/render"
)

const sampleYAML = `
version: 2
defaults:
  timeout: 10s
secrets:
  BROKER: env:FCHECK_TEST_BROKER
notify: always
notifiers:
  - id: ops
    type: webhook
    config:
      url: http://example.invalid/hook
setup:
  - name: prepare
    command:
      - cmd: mkdir -p /tmp/fcheck
test:
  - name: pipeline
    parallel: true
    command:
      - name: produce
        type: kafka
        operation: write
        host: ${{ secret "BROKER" }}
        topic: input
        messages: hello
        delay: 250
      - name: consume
        type: kafka
        operation: read
        host: ${{ secret "BROKER" }}
        topic: output
        timeout: 5s
      - type: file
        operation: copy
        fileFrom: a.txt
        fileTo: b.txt
      - type: delay
        delay: 1.5s
teardown:
  - command:
      - command: rm -rf /tmp/fcheck
        expect:
          - kind: contains
            value: ""
`

func TestParseYAMLBuildsTypedActions(t *testing.T) {
	def, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Defaults.Timeout.Duration != 10*time.Second {
		t.Fatalf("unexpected default timeout %s", def.Defaults.Timeout.Duration)
	}
	if def.Notify != NotifyAlways {
		t.Fatalf("unexpected notify policy %q", def.Notify)
	}
	if def.Setup == nil || def.Setup.Name != "prepare" {
		t.Fatalf("expected setup check, got %+v", def.Setup)
	}
	if def.Teardown == nil || def.Teardown.Name != "teardown" {
		t.Fatalf("expected teardown with fallback name, got %+v", def.Teardown)
	}
	if len(def.Tests) != 1 {
		t.Fatalf("expected 1 test, got %d", len(def.Tests))
	}
	check := def.Tests[0]
	if !check.Parallel || check.Version != SupportedVersion {
		t.Fatalf("unexpected check flags: %+v", check)
	}
	if len(check.Commands) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(check.Commands))
	}

	write, ok := check.Commands[0].Action.(MessageWriteAction)
	if !ok {
		t.Fatalf("expected MessageWriteAction, got %T", check.Commands[0].Action)
	}
	if len(write.Messages) != 1 || write.Messages[0] != "hello" {
		t.Fatalf("unexpected messages: %v", write.Messages)
	}
	if check.Commands[0].Delay != 250*time.Millisecond {
		t.Fatalf("expected integer delay in milliseconds, got %s", check.Commands[0].Delay)
	}
	read, ok := check.Commands[1].Action.(MessageReadAction)
	if !ok || read.Offset != "latest" {
		t.Fatalf("unexpected read action: %#v", check.Commands[1].Action)
	}
	if check.Commands[1].Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout %s", check.Commands[1].Timeout)
	}
	if _, ok := check.Commands[2].Action.(FileCopyAction); !ok {
		t.Fatalf("expected FileCopyAction, got %T", check.Commands[2].Action)
	}
	if _, ok := check.Commands[3].Action.(DelayAction); !ok {
		t.Fatalf("expected DelayAction, got %T", check.Commands[3].Action)
	}
	if check.Commands[3].Delay != 1500*time.Millisecond {
		t.Fatalf("unexpected delay %s", check.Commands[3].Delay)
	}
}

func TestRenderExpandsSecrets(t *testing.T) {
	t.Setenv("FCHECK_TEST_BROKER", "broker:9092")
	def, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	secrets, err := def.ResolveSecrets()
	if err != nil {
		t.Fatalf("resolve secrets: %v", err)
	}
	if err := def.Render(render.New(), secrets); err != nil {
		t.Fatalf("render: %v", err)
	}
	write := def.Tests[0].Commands[0].Action.(MessageWriteAction)
	if write.Host != "broker:9092" {
		t.Fatalf("expected rendered host, got %q", write.Host)
	}
}

func TestResolveSecretsMissingEnv(t *testing.T) {
	def := &RunDefinition{Secrets: map[string]SecretSpec{"X": {Source: "env", Value: "FCHECK_DEFINITELY_UNSET"}}}
	_, err := def.ResolveSecrets()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

const sampleTOML = `
version = "2"

[[setup]]
name = "setup 1"
[[setup.command]]
cmd = "echo setup"

[[test]]
name = "test 1"
[[test.command]]
name = "curl"
cmd = "echo curl"
timeout = 1000
[[test.command]]
name = "ping"
command = """
echo ping;
echo pong"""

[[teardown]]
[[teardown.command]]
command = "echo bye"
`

func TestParseTOML(t *testing.T) {
	def, err := Parse([]byte(sampleTOML), FormatTOML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Setup == nil || def.Setup.Name != "setup 1" {
		t.Fatalf("unexpected setup: %+v", def.Setup)
	}
	cmds := def.Tests[0].Commands
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if p := cmds[0].Action.(ProcessAction); p.Command != "echo curl" {
		t.Fatalf("unexpected command %q", p.Command)
	}
	if cmds[0].Timeout != time.Second {
		t.Fatalf("expected 1s timeout, got %s", cmds[0].Timeout)
	}
	if p := cmds[1].Action.(ProcessAction); p.Command != "echo ping;\necho pong" {
		t.Fatalf("unexpected multiline command %q", p.Command)
	}
	if def.Tests[0].Version != 2 {
		t.Fatalf("expected top-level version to apply, got %d", def.Tests[0].Version)
	}
}

func TestParseRejectsConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `
test:
  - name: t
    command:
      - type: ftp
        host: x
`,
		"unsupported version": `
test:
  - name: t
    version: 3
    command:
      - cmd: echo hi
`,
		"two setups": `
setup:
  - command: [{cmd: a}]
  - command: [{cmd: b}]
test: []
`,
		"unknown field": `
test:
  - name: t
    comand:
      - cmd: echo hi
`,
		"bad operation": `
test:
  - name: t
    command:
      - type: kafka
        operation: delete
        host: h
        topic: t
`,
		"bad duration": `
test:
  - name: t
    command:
      - cmd: echo hi
        timeout: soon
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), FormatYAML)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestUnsupportedVersionIsDistinguishable(t *testing.T) {
	_, err := Parse([]byte("test:\n  - name: t\n    version: 3\n    command:\n      - cmd: echo\n"), FormatYAML)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestLoadDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(sampleTOML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	bad := filepath.Join(dir, "config.dhall")
	if err := os.WriteFile(bad, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(bad); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unsupported extension, got %v", err)
	}
}

func TestExampleDefinitionLoads(t *testing.T) {
	def, err := Load(filepath.Join("..", "..", "config", "config.toml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if def.Setup == nil || def.Teardown == nil || len(def.Tests) != 2 {
		t.Fatalf("unexpected example shape: %+v", def)
	}
	read, ok := def.Tests[0].Commands[0].Action.(MessageReadAction)
	if !ok || read.Topic != "output" || def.Tests[0].Commands[0].Timeout != 10*time.Second {
		t.Fatalf("unexpected first action: %#v", def.Tests[0].Commands[0])
	}
	if len(def.Tests[1].Commands[1].Expect) != 1 {
		t.Fatalf("expected nested expect table")
	}
}
