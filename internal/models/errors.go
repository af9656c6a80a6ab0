package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBackingStore = "BACKING_STORE_FAILURE"
	CodeCascadeAbort = "CASCADE_ABORT"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Posts   []string `json:"posts,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// NewBackingStoreError wraps a transport or permission failure from the
// document store. op names the operation that failed.
func NewBackingStoreError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeBackingStore,
		Message: "backing store failure during " + op,
		Err:     err,
	}
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// CascadeAbortError is returned when at least one post batch of a hub
// deletion failed. The hub record is retained and the job can be replayed.
type CascadeAbortError struct {
	HubID  string
	Failed []PostFailure
}

// FailedPostIDs lists the posts whose batch did not commit.
func (e *CascadeAbortError) FailedPostIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.PostID)
	}
	return ids
}

func (e *CascadeAbortError) Error() string {
	return fmt.Sprintf("cascade of hub %s aborted: %d post(s) failed [%s]",
		e.HubID, len(e.Failed), strings.Join(e.FailedPostIDs(), ", "))
}

func (e *CascadeAbortError) Unwrap() error {
	return &AppError{Code: CodeCascadeAbort, Message: "hub deletion aborted"}
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeUnauthorized:
		return fiber.StatusForbidden
	case CodeBackingStore:
		return fiber.StatusBadGateway
	case CodeCascadeAbort:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// respondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var abort *CascadeAbortError
	var appErr *AppError
	switch {
	case errors.As(err, &abort):
		response = ErrorResponse{
			Error: abort.Error(),
			Code:  CodeCascadeAbort,
			Posts: abort.FailedPostIDs(),
		}
	case errors.As(err, &appErr):
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	default:
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
