package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("datasize", validateDataSize); err != nil {
		panic(err) // only fails on a malformed tag name, which this literal isn't
	}
	return v
}

// validateDataSize implements the "datasize" validator tag: empty is valid
// (field is optional), otherwise the value must parse via parseSize.
func validateDataSize(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := parseSize(s)
	return err == nil
}

// ValidateConfig validates config and returns one error per violated field.
// An empty slice means config is valid.
func ValidateConfig(config *Config) []error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []error{err}
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, ValidationError{
			Field:   fe.Namespace(),
			Message: validationMessage(fe),
		})
	}
	return errs
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validationMessage turns a validator.FieldError into a human-readable
// message, covering the tags config.go's struct tags actually use.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be >= " + fe.Param()
	case "datasize":
		return fmt.Sprintf("invalid size format: %q", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// parseSize parses a size string like "256MB" or "1GB" into bytes.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}

	multipliers := []struct {
		suffix string
		mult   int64
	}{
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			numStr := strings.TrimSuffix(s, m.suffix)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size format: %s", s)
			}
			return num * m.mult, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", s)
	}
	return num, nil
}
