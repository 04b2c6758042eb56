// Package service holds the application services: the task lifecycle engine,
// categories, users and their chat settings.
package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Common service errors - sentinel errors used across service implementations.
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrDefaultCategory is returned when deleting or renaming the Uncategorized category.
	ErrDefaultCategory = fmt.Errorf("%w: the default category cannot be changed", domain.ErrForbidden)

	// ErrChatNotLinked is returned when an action needs a linked chat account.
	ErrChatNotLinked = errors.New("chat account not linked")
)

// ServiceError is the error type returned by service operations. It names the
// service and operation and wraps the cause.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a ServiceError for the task service.
func NewTaskServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "task", Operation: operation, Message: message, Err: err}
}

// NewCategoryServiceError creates a ServiceError for the category service.
func NewCategoryServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "category", Operation: operation, Message: message, Err: err}
}

// NewUserServiceError creates a ServiceError for the user service.
func NewUserServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "user", Operation: operation, Message: message, Err: err}
}
