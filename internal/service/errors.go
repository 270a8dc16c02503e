// Package service provides application-level services for managing scheduled tasks.
package service

import "errors"

// Common service errors. Callers check for these with errors.Is();
// the API layer maps them to HTTP status codes.
var (
	// ErrTaskNotFound indicates that the task does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")
)
