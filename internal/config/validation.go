package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ValidateConfig checks the configuration against the schema and the
// rules the schema cannot express.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateSchema(c)...)

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		if c.Logging.FilePath == "" {
			errs = append(errs, ValidationError{Field: "logging.file_path", Message: "required when output writes to a file"})
		}
	}
	if c.Preedit.Encoding != "" {
		if _, err := htmlindex.Get(c.Preedit.Encoding); err != nil {
			errs = append(errs, ValidationError{
				Field:   "preedit.encoding",
				Message: fmt.Sprintf("unknown encoding %q", c.Preedit.Encoding),
			})
		}
	}

	seen := make(map[string]bool)
	for i, hk := range c.Hotkeys {
		key := strings.ToLower(strings.ReplaceAll(hk, " ", ""))
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("hotkeys[%d]", i),
				Message: fmt.Sprintf("duplicate hotkey %q", hk),
			})
		}
		seen[key] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
