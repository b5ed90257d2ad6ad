package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a report is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrReportLocked is returned when another process is generating the
	// same quarter range
	ErrReportLocked = errors.New("report generation already in progress")
)
