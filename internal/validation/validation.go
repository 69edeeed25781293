// Package validation checks request schemas before any state is touched and
// reports every failing field at once.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tcglibrary/catalog/internal/apperr"
)

// emailRegex is intentionally loose: local@domain.tld
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator instance for request validation
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json field names instead of Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
}

// GetValidator returns the validator instance so packages can register
// their own domain tags
func GetValidator() *validator.Validate {
	return validate
}

// IsEmail reports whether s looks like local@domain.tld
func IsEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// Struct validates v and returns a single aggregated validation error
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("Invalid request", nil)
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], message(fe))
	}
	return apperr.Validation("Request validation failed", fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must not contain more than %s items", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "simpleemail", "email":
		return "Invalid email format"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Merge combines validation errors into one, keeping every field message.
// A non-validation error is returned as is.
func Merge(errs ...error) error {
	fields := make(map[string][]string)
	for _, err := range errs {
		if err == nil {
			continue
		}
		e, ok := apperr.As(err)
		if !ok || e.Kind != apperr.KindValidation {
			return err
		}
		for f, msgs := range e.Fields {
			fields[f] = append(fields[f], msgs...)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation("Request validation failed", fields)
}
