package simulation

import "fmt"

// ConfigurationError reports a malformed portfolio, policy, or distribution
// setup. It is fatal at construction time; no trial executes after one.
type ConfigurationError struct {
	Field      string
	Constraint string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Constraint)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Constraint: fmt.Sprintf(format, args...)}
}
