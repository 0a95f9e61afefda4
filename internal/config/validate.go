package config

import (
	"fmt"
	"time"

	"github.com/djlord-it/jobadmin/internal/dispatch"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	errs = append(errs, validateDuration("TRIGGER_TIMEOUT", cfg.TriggerTimeoutStr)...)
	errs = append(errs, validateDuration("HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeoutStr)...)
	errs = append(errs, validateDuration("JANITOR_INTERVAL", cfg.JanitorIntervalStr)...)

	// TRIGGER_TIMEOUT outside the clamp range works but is silently
	// adjusted; flag it here so it fails loudly instead.
	if cfg.TriggerTimeout != 0 &&
		(cfg.TriggerTimeout < dispatch.MinTriggerTimeout || cfg.TriggerTimeout > dispatch.MaxTriggerTimeout) {
		errs = append(errs, ValidationError{
			Field: "TRIGGER_TIMEOUT",
			Message: fmt.Sprintf("must be between %s and %s, got %s",
				dispatch.MinTriggerTimeout, dispatch.MaxTriggerTimeout, cfg.TriggerTimeout),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDuration(field, raw string) ValidationErrors {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}
