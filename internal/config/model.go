package config

import (
	"fmt"
	"strings"
	"time"
)

// SupportedVersion is the only check schema version this engine runs.
const SupportedVersion Version = 2

// NotifyPolicy controls when notifiers receive the run verdict.
type NotifyPolicy string

const (
	NotifyNever   NotifyPolicy = "never"
	NotifyFailure NotifyPolicy = "failure"
	NotifyAlways  NotifyPolicy = "always"
)

// RunDefinition is the parsed, validated input of one run.
type RunDefinition struct {
	Defaults  Defaults
	Secrets   map[string]SecretSpec
	Notify    NotifyPolicy
	Notifiers []NotifierConfig
	Setup     *CheckDefinition
	Tests     []CheckDefinition
	Teardown  *CheckDefinition
}

// Checks returns pointers to every check in declaration order: setup, tests, teardown.
func (d *RunDefinition) Checks() []*CheckDefinition {
	out := make([]*CheckDefinition, 0, len(d.Tests)+2)
	if d.Setup != nil {
		out = append(out, d.Setup)
	}
	for i := range d.Tests {
		out = append(out, &d.Tests[i])
	}
	if d.Teardown != nil {
		out = append(out, d.Teardown)
	}
	return out
}

// CheckDefinition is one named check.
type CheckDefinition struct {
	Name        string
	Description string
	Disabled    bool
	Parallel    bool
	Version     Version
	Commands    []ActionGroup
}

// ActionGroup is one entry of a check's command list.
type ActionGroup struct {
	Name        string
	Description string
	Disabled    bool
	Action      Action
	Timeout     time.Duration
	Delay       time.Duration
	Expect      []Assertion
}

// ActionKind names a member of the closed action set.
type ActionKind string

const (
	KindProcess      ActionKind = "process"
	KindFileCopy     ActionKind = "file-copy"
	KindMessageWrite ActionKind = "message-write"
	KindMessageRead  ActionKind = "message-read"
	KindDelay        ActionKind = "delay"
)

// Action is implemented only by the action types of this package.
type Action interface {
	Kind() ActionKind
	// Describe returns a one-line rendering used as commandCommand in reports.
	Describe() string
	sealed()
}

// ProcessAction runs a shell command.
type ProcessAction struct {
	Command string
}

// FileCopyAction copies From to To.
type FileCopyAction struct {
	From string
	To   string
}

// MessageWriteAction publishes Messages to Topic on Host.
type MessageWriteAction struct {
	Host     string
	Topic    string
	Messages []string
}

// MessageReadAction waits for the first message on Topic.
type MessageReadAction struct {
	Host   string
	Topic  string
	Offset string
}

// DelayAction only waits for the group's delay.
type DelayAction struct{}

func (ProcessAction) Kind() ActionKind      { return KindProcess }
func (FileCopyAction) Kind() ActionKind     { return KindFileCopy }
func (MessageWriteAction) Kind() ActionKind { return KindMessageWrite }
func (MessageReadAction) Kind() ActionKind  { return KindMessageRead }
func (DelayAction) Kind() ActionKind        { return KindDelay }

func (a ProcessAction) Describe() string { return a.Command }

func (a FileCopyAction) Describe() string { return fmt.Sprintf("copy %s -> %s", a.From, a.To) }

func (a MessageWriteAction) Describe() string {
	return fmt.Sprintf("write %d message(s) to %s@%s", len(a.Messages), a.Topic, a.Host)
}

func (a MessageReadAction) Describe() string { return fmt.Sprintf("read from %s@%s", a.Topic, a.Host) }

func (DelayAction) Describe() string { return "delay" }

func (ProcessAction) sealed()      {}
func (FileCopyAction) sealed()     {}
func (MessageWriteAction) sealed() {}
func (MessageReadAction) sealed()  {}
func (DelayAction) sealed()        {}

func buildAction(c fileCommand) (Action, error) {
	typ := strings.ToLower(strings.TrimSpace(c.Type))
	op := strings.ToLower(strings.TrimSpace(c.Operation))
	command := c.Command
	if command == "" {
		command = c.Cmd
	}
	if typ == "" {
		switch {
		case command != "":
			typ = "command"
		case c.FileFrom != "" || c.FileTo != "":
			typ = "file"
		case c.Delay.Duration > 0:
			typ = "delay"
		}
	}

	switch typ {
	case "command", "process", "shell":
		if strings.TrimSpace(command) == "" {
			return nil, fmt.Errorf("command is required for type %q", typ)
		}
		return ProcessAction{Command: command}, nil
	case "file":
		if op != "" && op != "copy" {
			return nil, fmt.Errorf("unsupported file operation %q", c.Operation)
		}
		if c.FileFrom == "" || c.FileTo == "" {
			return nil, fmt.Errorf("fileFrom and fileTo are required for file copy")
		}
		return FileCopyAction{From: c.FileFrom, To: c.FileTo}, nil
	case "kafka", "queue", "message":
		if c.Host == "" || c.Topic == "" {
			return nil, fmt.Errorf("host and topic are required for type %q", typ)
		}
		switch op {
		case "write", "publish":
			if len(c.Messages) == 0 {
				return nil, fmt.Errorf("messages are required for %s write", typ)
			}
			return MessageWriteAction{Host: c.Host, Topic: c.Topic, Messages: append([]string(nil), c.Messages...)}, nil
		case "read", "consume":
			offset := strings.ToLower(strings.TrimSpace(c.Offset))
			switch offset {
			case "":
				offset = "latest"
			case "latest", "earliest":
			default:
				return nil, fmt.Errorf("unsupported offset %q", c.Offset)
			}
			return MessageReadAction{Host: c.Host, Topic: c.Topic, Offset: offset}, nil
		default:
			return nil, fmt.Errorf("unsupported %s operation %q", typ, c.Operation)
		}
	case "delay", "sleep":
		if c.Delay.Duration <= 0 {
			return nil, fmt.Errorf("delay must be positive for type %q", typ)
		}
		return DelayAction{}, nil
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unknown action type %q", c.Type)
	}
}
