package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateRoute validates a demo route name. Route names prefix scope ids,
// so they cannot contain the ':' separator.
func (v *Validator) ValidateRoute(route string) error {
	if strings.TrimSpace(route) == "" {
		return fmt.Errorf("route name cannot be empty")
	}
	if strings.Contains(route, ":") {
		return fmt.Errorf("invalid route name %q: ':' is reserved", route)
	}
	return nil
}

// ValidateSharedSecret validates the gateway secret. Empty disables auth.
func (v *Validator) ValidateSharedSecret(secret string) error {
	if secret == "" {
		return nil
	}
	if len(secret) < 16 {
		return fmt.Errorf("gateway shared secret must be at least 16 characters")
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}
	for _, route := range cfg.Demo.Routes {
		if err := v.ValidateRoute(route); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateSharedSecret(cfg.Gateway.SharedSecret); err != nil {
		errors = append(errors, err)
	}

	return errors
}
