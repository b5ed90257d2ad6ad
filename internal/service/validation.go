package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/straye-as/activity-reports/internal/domain"
)

var validate = validator.New()

// ValidationError lists the fields of a request that failed validation
type ValidationError struct {
	Fields []domain.ValidationFieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// validateStruct runs struct tag validation and converts failures into a
// ValidationError
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fields := make([]domain.ValidationFieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, domain.ValidationFieldError{
			Field:   toJSONFieldName(fe.Field()),
			Message: formatValidationError(fe),
		})
	}
	return &ValidationError{Fields: fields}
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
