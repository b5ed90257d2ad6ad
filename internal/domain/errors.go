package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidQuarter matches any InvalidQuarterError via errors.Is
var ErrInvalidQuarter = errors.New("invalid quarter")

// InvalidQuarterError is returned when a quarter code is not one of Q1..Q4
type InvalidQuarterError struct {
	Quarter string
}

func (e *InvalidQuarterError) Error() string {
	return fmt.Sprintf("invalid quarter %q: use 'Q1', 'Q2', 'Q3' or 'Q4'", e.Quarter)
}

// Is lets errors.Is(err, ErrInvalidQuarter) match
func (e *InvalidQuarterError) Is(target error) bool {
	return target == ErrInvalidQuarter
}

// ValidationFieldError maps a field name to its validation error message
type ValidationFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationFieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationMessages maps validator tags to human-readable messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"gte":      "Must be greater than or equal to minimum value",
	"lte":      "Must be less than or equal to maximum value",
	"oneof":    "Must be one of the allowed values",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
