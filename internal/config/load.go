package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalid marks every configuration error. Callers exit with status 2 on it.
	ErrInvalid = errors.New("invalid definition")
	// ErrUnsupportedVersion is returned for checks declaring a version other than SupportedVersion.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrInvalid)
)

// Format is a definition file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: unsupported config extension %q (valid: .toml, .yml, .yaml)", ErrInvalid, filepath.Ext(path))
	}
}

// Load reads and parses a definition file.
func Load(path string) (*RunDefinition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes and validates a definition.
func Parse(data []byte, format Format) (*RunDefinition, error) {
	var raw fileDefinition
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalid, err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parse toml: %v", ErrInvalid, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalid, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalid, format)
	}

	def, err := build(raw)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func build(raw fileDefinition) (*RunDefinition, error) {
	def := &RunDefinition{
		Defaults:  raw.Defaults,
		Secrets:   raw.Secrets,
		Notify:    NotifyPolicy(strings.ToLower(strings.TrimSpace(raw.Notify))),
		Notifiers: raw.Notifiers,
	}
	if def.Notify == "" {
		def.Notify = NotifyFailure
	}

	if len(raw.Setup) > 1 {
		return nil, fmt.Errorf("%w: at most one setup check is allowed, got %d", ErrInvalid, len(raw.Setup))
	}
	if len(raw.Teardown) > 1 {
		return nil, fmt.Errorf("%w: at most one teardown check is allowed, got %d", ErrInvalid, len(raw.Teardown))
	}

	if len(raw.Setup) == 1 {
		check, err := buildCheck(raw.Setup[0], "setup", raw.Version)
		if err != nil {
			return nil, err
		}
		def.Setup = &check
	}
	tests := append(append([]fileCheck(nil), raw.Test...), raw.Tests...)
	for i, fc := range tests {
		check, err := buildCheck(fc, fmt.Sprintf("test-%d", i+1), raw.Version)
		if err != nil {
			return nil, err
		}
		def.Tests = append(def.Tests, check)
	}
	if len(raw.Teardown) == 1 {
		check, err := buildCheck(raw.Teardown[0], "teardown", raw.Version)
		if err != nil {
			return nil, err
		}
		def.Teardown = &check
	}
	return def, nil
}

func buildCheck(fc fileCheck, fallbackName string, defaultVersion Version) (CheckDefinition, error) {
	check := CheckDefinition{
		Name:        strings.TrimSpace(fc.Name),
		Description: fc.Description,
		Disabled:    fc.Disabled,
		Parallel:    fc.Parallel,
		Version:     fc.Version,
	}
	if check.Name == "" {
		check.Name = fallbackName
	}
	if check.Version == 0 {
		check.Version = defaultVersion
	}
	commands := append(append([]fileCommand(nil), fc.Command...), fc.Commands...)
	for i, fcmd := range commands {
		action, err := buildAction(fcmd)
		if err != nil {
			return CheckDefinition{}, fmt.Errorf("%w: check %q command %d: %v", ErrInvalid, check.Name, i+1, err)
		}
		check.Commands = append(check.Commands, ActionGroup{
			Name:        strings.TrimSpace(fcmd.Name),
			Description: fcmd.Description,
			Disabled:    fcmd.Disabled,
			Action:      action,
			Timeout:     fcmd.Timeout.Duration,
			Delay:       fcmd.Delay.Duration,
			Expect:      fcmd.Expect,
		})
	}
	return check, nil
}
