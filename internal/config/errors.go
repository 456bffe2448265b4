package config

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPolicy is returned for any counter policy other than "local"
var ErrUnsupportedPolicy = errors.New("unsupported rate limiting policy")

// ValidationError describes a configuration value the gateway cannot run with
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func prefixed(prefix string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &ValidationError{
			Field:   prefix + "." + ve.Field,
			Message: ve.Message,
			Err:     ve.Err,
		}
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
