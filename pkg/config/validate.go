package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-triangles/pkg/logging"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their YAML key
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		var level logging.Level
		return level.UnmarshalText([]byte(fl.Field().String())) == nil
	})
}

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "min":
			return fmt.Errorf("%s: must be at least %s, got %v", field, param, e.Value())
		case "max":
			return fmt.Errorf("%s: must not exceed %s, got %v", field, param, e.Value())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %q", field, param, e.Value())
		case "loglevel":
			return fmt.Errorf("%s: unknown log level %q", field, e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
