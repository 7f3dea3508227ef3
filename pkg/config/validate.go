package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their YAML key
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks field constraints and the rules that span sections
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	var errs []error
	sections := []struct {
		name  string
		value any
	}{
		{"cluster", &c.Cluster},
		{"database", &c.Database},
		{"http", &c.HTTP},
		{"logging", &c.Logging},
	}
	for _, section := range sections {
		if err := validate.Struct(section.value); err != nil {
			errs = append(errs, formatValidationError(section.name, err)...)
		}
	}

	if c.Cluster.Clustered && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url: required when clustered"))
	}

	return errors.Join(errs...)
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(section string, err error) []error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []error{fmt.Errorf("%s: %w", section, err)}
	}

	out := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := section + "." + e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required", "required_if":
			out = append(out, fmt.Errorf("%s: field is required", field))
		case "gt":
			out = append(out, fmt.Errorf("%s: must be greater than %s", field, param))
		case "gte":
			out = append(out, fmt.Errorf("%s: must be at least %s", field, param))
		case "lte", "max":
			out = append(out, fmt.Errorf("%s: must not exceed %s", field, param))
		case "gtfield":
			out = append(out, fmt.Errorf("%s: must be greater than %s", field, param))
		case "ltefield":
			out = append(out, fmt.Errorf("%s: must not exceed %s", field, param))
		case "oneof":
			out = append(out, fmt.Errorf("%s: must be one of [%s]", field, param))
		case "excludesall":
			out = append(out, fmt.Errorf("%s: must not contain any of %q", field, param))
		default:
			out = append(out, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return out
}
