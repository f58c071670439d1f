package services

import "errors"

// Dashboard service errors
var (
	ErrCategoryNotFound = errors.New("vehicle category not found")
	ErrInvalidGroupBy   = errors.New("invalid grouping")
	ErrInvalidLimit     = errors.New("limit must be positive")
)
