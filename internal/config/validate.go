package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate reports the first configuration error in the definition.
func (d *RunDefinition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: definition is nil", ErrInvalid)
	}
	if err := d.CheckVersions(); err != nil {
		return err
	}
	switch d.Notify {
	case NotifyNever, NotifyFailure, NotifyAlways:
	default:
		return fmt.Errorf("%w: unsupported notify policy %q", ErrInvalid, d.Notify)
	}
	seen := make(map[string]bool, len(d.Notifiers))
	for _, n := range d.Notifiers {
		if strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("%w: notifier id is required", ErrInvalid)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate notifier %q", ErrInvalid, n.ID)
		}
		seen[n.ID] = true
	}
	for _, check := range d.Checks() {
		for i, group := range check.Commands {
			if group.Action == nil {
				return fmt.Errorf("%w: check %q command %d has no action", ErrInvalid, check.Name, i+1)
			}
			if err := validateAssertions(group.Expect); err != nil {
				return fmt.Errorf("%w: check %q command %d: %v", ErrInvalid, check.Name, i+1, err)
			}
		}
	}
	return nil
}

// CheckVersions rejects any check declaring a version the engine does not support.
// An unset version is accepted.
func (d *RunDefinition) CheckVersions() error {
	for _, check := range d.Checks() {
		if check.Version != 0 && check.Version != SupportedVersion {
			return fmt.Errorf("check %q: %w %d (supported: %d)", check.Name, ErrUnsupportedVersion, check.Version, SupportedVersion)
		}
	}
	return nil
}

func validateAssertions(assertions []Assertion) error {
	for _, a := range assertions {
		switch strings.ToLower(a.Kind) {
		case "contains":
		case "regex":
			if _, err := regexp.Compile(fmt.Sprintf("%v", a.Value)); err != nil {
				return fmt.Errorf("invalid regex %v: %w", a.Value, err)
			}
		case "jsonpath":
			if a.Path == "" {
				return fmt.Errorf("jsonpath assertion requires a path")
			}
			switch strings.ToLower(a.Op) {
			case "", "equals", "equal", "==", "exists", "not_equals", "!=":
			default:
				return fmt.Errorf("unsupported jsonpath op %q", a.Op)
			}
		default:
			return fmt.Errorf("unsupported assertion %q", a.Kind)
		}
	}
	return nil
}
