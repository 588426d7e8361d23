package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidWorkers indicates an out-of-range worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidCacheSize indicates an out-of-range resolver cache size
	ErrInvalidCacheSize = errors.New("invalid resolver cache size")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// fieldErrors maps struct fields to the sentinel reported when they fail validation.
var fieldErrors = map[string]error{
	"Workers":   ErrInvalidWorkers,
	"CacheSize": ErrInvalidCacheSize,
	"Level":     ErrInvalidLogLevel,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		sentinel, ok := fieldErrors[fe.Field()]
		if !ok {
			errs = append(errs, fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag()))
			continue
		}
		errs = append(errs, fmt.Errorf("%w: %s must satisfy %s=%s, got %v", sentinel, fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}

	return joinErrors(errs)
}

// joinErrors combines multiple errors into a single error with clear formatting.
// Every error stays reachable through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	args := make([]any, len(errs))
	for i, err := range errs {
		args[i] = err
	}

	return fmt.Errorf("validation failed:"+strings.Repeat("\n  - %w", len(errs)), args...)
}
