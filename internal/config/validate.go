package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(tomlTagName)
}

// Validate checks all configuration values and returns every error found,
// so users can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		errs = append(errs, formatValidationErrors(err)...)
	}

	errs = append(errs, validateDurations(cfg)...)

	return errors.Join(errs...)
}

func validateDurations(cfg *Config) []error {
	var errs []error

	if err := checkDuration("connect_timeout", cfg.ConnectTimeout, minConnectTimeout); err != nil {
		errs = append(errs, err)
	}

	if err := checkDuration("lock_expiry", cfg.LockExpiry, minLockExpiry); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func checkDuration(key, value string, minimum time.Duration) error {
	if value == "" {
		return nil // reported by the required tag
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, value)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be at least %s, got %s", key, minimum, d)
	}

	return nil
}

// formatValidationErrors turns validator output into one error per key,
// named the way the key is written in the file.
func formatValidationErrors(err error) []error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	errs := make([]error, 0, len(verrs))

	for _, e := range verrs {
		switch e.Tag() {
		case "oneof":
			errs = append(errs, fmt.Errorf("%s: must be one of [%s], got %q", e.Field(), e.Param(), e.Value()))
		case "min", "max":
			errs = append(errs, fmt.Errorf("%s: %s %s, got %v", e.Field(), boundWord(e.Tag()), e.Param(), e.Value()))
		case "excludesall":
			errs = append(errs, fmt.Errorf("%s: must not contain %q, got %q", e.Field(), e.Param(), e.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s: failed %q check", e.Field(), e.Tag()))
		}
	}

	return errs
}

func boundWord(tag string) string {
	if tag == "min" {
		return "must be at least"
	}

	return "must be at most"
}

// tomlTagName makes validator report keys by their TOML names.
func tomlTagName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
	if name == "-" {
		return ""
	}

	return name
}
