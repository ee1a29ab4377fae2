package engine

import "fmt"

// ConfigError reports an invalid configuration value. Validation runs
// before any frame is computed; bad configs are never coerced mid-run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
