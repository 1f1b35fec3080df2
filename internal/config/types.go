package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to allow unmarshalling from YAML and TOML.
// Strings are parsed with time.ParseDuration, bare numbers are milliseconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %s", value.ShortTag())
	}
	switch value.ShortTag() {
	case "!!int", "!!float":
		ms, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		return d.setMillis(ms)
	default:
		return d.setString(value.Value)
	}
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Duration) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		return d.setMillis(float64(val))
	case float64:
		return d.setMillis(val)
	case string:
		return d.setString(val)
	default:
		return fmt.Errorf("duration must be a string or number, got %T", v)
	}
}

func (d *Duration) setMillis(ms float64) error {
	if ms < 0 {
		return fmt.Errorf("duration must not be negative, got %v", ms)
	}
	d.Duration = time.Duration(ms * float64(time.Millisecond))
	return nil
}

func (d *Duration) setString(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	if ms, err := strconv.ParseFloat(raw, 64); err == nil {
		return d.setMillis(ms)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration must not be negative, got %q", raw)
	}
	d.Duration = parsed
	return nil
}

// Version is a schema version tag. Both 2 and "2" are accepted.
type Version int

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Version) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("version must be a scalar, got %s", value.ShortTag())
	}
	return v.set(value.Value)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (v *Version) UnmarshalTOML(data any) error {
	switch val := data.(type) {
	case int64:
		*v = Version(val)
		return nil
	case string:
		return v.set(val)
	default:
		return fmt.Errorf("version must be an integer or string, got %T", data)
	}
}

func (v *Version) set(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*v = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid version %q", raw)
	}
	*v = Version(n)
	return nil
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got %s", value.ShortTag())
	}
}

// UnmarshalTOML implements toml.Unmarshaler.
func (l *StringList) UnmarshalTOML(data any) error {
	switch val := data.(type) {
	case string:
		*l = StringList{val}
		return nil
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, fmt.Sprintf("%v", item))
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got %T", data)
	}
}

// SecretSpec defines how to resolve a secret.
type SecretSpec struct {
	Source string
	Value  string
}

// UnmarshalYAML parses secret definitions like "env:KAFKA_HOST".
func (s *SecretSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("secret must be scalar, got %s", value.ShortTag())
	}
	return s.parse(value.Value)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (s *SecretSpec) UnmarshalTOML(data any) error {
	raw, ok := data.(string)
	if !ok {
		return fmt.Errorf("secret must be a string, got %T", data)
	}
	return s.parse(raw)
}

func (s *SecretSpec) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid secret spec %q", raw)
	}
	s.Source = strings.TrimSpace(parts[0])
	s.Value = strings.TrimSpace(parts[1])
	return nil
}

// ResolveSecrets resolves secrets into a map.
func (d *RunDefinition) ResolveSecrets() (map[string]string, error) {
	resolved := make(map[string]string, len(d.Secrets))
	for key, spec := range d.Secrets {
		switch spec.Source {
		case "env":
			val, ok := os.LookupEnv(spec.Value)
			if !ok {
				return nil, fmt.Errorf("%w: missing env var %q for secret %q", ErrInvalid, spec.Value, key)
			}
			resolved[key] = val
		case "literal":
			resolved[key] = spec.Value
		default:
			return nil, fmt.Errorf("%w: unsupported secret source %q for secret %q", ErrInvalid, spec.Source, key)
		}
	}
	return resolved, nil
}

// Defaults contains run-wide fallbacks.
type Defaults struct {
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// NotifierConfig describes a notification endpoint.
type NotifierConfig struct {
	ID     string                 `yaml:"id" toml:"id"`
	Type   string                 `yaml:"type" toml:"type"`
	Config map[string]interface{} `yaml:"config" toml:"config"`
}

// Assertion expresses an expectation over an action's output.
type Assertion struct {
	Kind  string      `yaml:"kind" toml:"kind"`
	Op    string      `yaml:"op" toml:"op"`
	Path  string      `yaml:"path" toml:"path"`
	Value interface{} `yaml:"value" toml:"value"`
}

// fileDefinition is the on-disk shape of a run definition.
type fileDefinition struct {
	Version   Version               `yaml:"version" toml:"version"`
	Defaults  Defaults              `yaml:"defaults" toml:"defaults"`
	Secrets   map[string]SecretSpec `yaml:"secrets" toml:"secrets"`
	Notify    string                `yaml:"notify" toml:"notify"`
	Notifiers []NotifierConfig      `yaml:"notifiers" toml:"notifiers"`
	Setup     []fileCheck           `yaml:"setup" toml:"setup"`
	Test      []fileCheck           `yaml:"test" toml:"test"`
	Tests     []fileCheck           `yaml:"tests" toml:"tests"`
	Teardown  []fileCheck           `yaml:"teardown" toml:"teardown"`
}

type fileCheck struct {
	Name        string        `yaml:"name" toml:"name"`
	Description string        `yaml:"description" toml:"description"`
	Disabled    bool          `yaml:"disabled" toml:"disabled"`
	Version     Version       `yaml:"version" toml:"version"`
	Parallel    bool          `yaml:"parallel" toml:"parallel"`
	Command     []fileCommand `yaml:"command" toml:"command"`
	Commands    []fileCommand `yaml:"commands" toml:"commands"`
}

type fileCommand struct {
	Name        string      `yaml:"name" toml:"name"`
	Description string      `yaml:"description" toml:"description"`
	Disabled    bool        `yaml:"disabled" toml:"disabled"`
	Type        string      `yaml:"type" toml:"type"`
	Operation   string      `yaml:"operation" toml:"operation"`
	Command     string      `yaml:"command" toml:"command"`
	Cmd         string      `yaml:"cmd" toml:"cmd"`
	FileFrom    string      `yaml:"fileFrom" toml:"fileFrom"`
	FileTo      string      `yaml:"fileTo" toml:"fileTo"`
	Host        string      `yaml:"host" toml:"host"`
	Topic       string      `yaml:"topic" toml:"topic"`
	Messages    StringList  `yaml:"messages" toml:"messages"`
	Offset      string      `yaml:"offset" toml:"offset"`
	Timeout     Duration    `yaml:"timeout" toml:"timeout"`
	Delay       Duration    `yaml:"delay" toml:"delay"`
	Expect      []Assertion `yaml:"expect" toml:"expect"`
}
