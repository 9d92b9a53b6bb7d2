package errors

import (
	"fmt"
	"net/http"

	"github.com/yield-scanner/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed or missing input (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents lookups for unknown entities
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryCapacity represents configuration capacity violations
	CategoryCapacity ErrorCategory = "capacity"
	// CategoryDispatch represents scan dispatch failures
	CategoryDispatch ErrorCategory = "dispatch"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents unexpected internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates an error for a malformed or missing field
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewNotFoundError creates a not found error for an entity id
func NewNotFoundError(resource string, id int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %d", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewCapacityExceededError creates an error for a configuration at its agent limit
func NewCapacityExceededError(configurationID int64, limit int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCapacity,
		StatusCode: http.StatusBadRequest,
		Code:       "CAPACITY_EXCEEDED",
		Message:    fmt.Sprintf("configuration %d already has the maximum of %d agents", configurationID, limit),
		Details: map[string]interface{}{
			"configurationId": configurationID,
			"maxAgents":       limit,
		},
	}
}

// NewParallelScanDisabledError creates an error for configurations without parallel scanning
func NewParallelScanDisabledError(configurationID int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDispatch,
		StatusCode: http.StatusBadRequest,
		Code:       "PARALLEL_SCAN_DISABLED",
		Message:    fmt.Sprintf("parallel scanning is not enabled for configuration %d", configurationID),
		Details: map[string]interface{}{
			"configurationId": configurationID,
		},
	}
}

// NewNoAvailableAgentsError creates an error for a dispatch with no idle agents
func NewNoAvailableAgentsError(configurationID int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDispatch,
		StatusCode: http.StatusBadRequest,
		Code:       "NO_AVAILABLE_AGENTS",
		Message:    "no idle agents available for parallel scan",
		Details: map[string]interface{}{
			"configurationId": configurationID,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError by its code
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	statusCode := http.StatusInternalServerError
	category := CategorySystem

	switch err.Code {
	case "VALIDATION_ERROR":
		statusCode, category = http.StatusBadRequest, CategoryValidation
	case "NOT_FOUND":
		statusCode, category = http.StatusNotFound, CategoryNotFound
	case "CAPACITY_EXCEEDED":
		statusCode, category = http.StatusBadRequest, CategoryCapacity
	case "PARALLEL_SCAN_DISABLED", "NO_AVAILABLE_AGENTS":
		statusCode, category = http.StatusBadRequest, CategoryDispatch
	}

	return &CategorizedError{
		Category:   category,
		StatusCode: statusCode,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether an error represents a missing entity
func IsNotFound(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryNotFound
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
