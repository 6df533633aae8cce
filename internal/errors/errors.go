package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient   ErrorCategory = "client"
	CategoryServer   ErrorCategory = "server"
	CategoryExternal ErrorCategory = "external"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

	// Authentication specific
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidReset       = "INVALID_RESET"

	// Resource specific
	CodeBrandNotFound   = "BRAND_NOT_FOUND"
	CodeProjectNotFound = "PROJECT_NOT_FOUND"
	CodeScriptNotFound  = "SCRIPT_NOT_FOUND"
	CodeAssetNotFound   = "ASSET_NOT_FOUND"
	CodeJobNotFound     = "JOB_NOT_FOUND"

	// Server errors (5xx)
	CodeInternalError = "INTERNAL_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeStorageError  = "STORAGE_ERROR"

	// External service errors
	CodeGenerationError = "GENERATION_ERROR"
	CodeExternalTimeout = "EXTERNAL_TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

// Client error constructors

func BadRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, CategoryClient, http.StatusBadRequest)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message, CategoryClient, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, CategoryClient, http.StatusUnauthorized)
}

// InvalidCredentials covers both unknown email and wrong password with one
// message so login failures cannot be used to probe for accounts.
func InvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "invalid email or password", CategoryClient, http.StatusUnauthorized)
}

func InvalidToken(message string) *AppError {
	return New(CodeInvalidToken, message, CategoryClient, http.StatusUnauthorized)
}

func TokenExpired() *AppError {
	return New(CodeTokenExpired, "token has expired", CategoryClient, http.StatusUnauthorized)
}

func WeakPassword(reason string) *AppError {
	return New(CodeWeakPassword, reason, CategoryClient, http.StatusBadRequest)
}

// InvalidReset covers unknown email, bad code, expired code, and reused code
// with one message. Internal logs may distinguish; the client never can.
func InvalidReset() *AppError {
	return New(CodeInvalidReset, "invalid or expired reset code", CategoryClient, http.StatusBadRequest)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, CategoryClient, http.StatusForbidden)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), CategoryClient, http.StatusNotFound)
}

func BrandNotFound() *AppError {
	return New(CodeBrandNotFound, "brand not found", CategoryClient, http.StatusNotFound)
}

func ProjectNotFound() *AppError {
	return New(CodeProjectNotFound, "project not found", CategoryClient, http.StatusNotFound)
}

func ScriptNotFound() *AppError {
	return New(CodeScriptNotFound, "script not found", CategoryClient, http.StatusNotFound)
}

func AssetNotFound() *AppError {
	return New(CodeAssetNotFound, "asset not found", CategoryClient, http.StatusNotFound)
}

func JobNotFound() *AppError {
	return New(CodeJobNotFound, "job not found", CategoryClient, http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, CategoryClient, http.StatusConflict)
}

func EmailExists() *AppError {
	return New(CodeEmailExists, "email already registered", CategoryClient, http.StatusConflict)
}

func PayloadTooLarge(message string) *AppError {
	return New(CodePayloadTooLarge, message, CategoryClient, http.StatusRequestEntityTooLarge)
}

// RateLimited reports how many seconds remain until the next attempt is allowed.
func RateLimited(retryAfterSeconds int) *AppError {
	return New(CodeRateLimited, "too many attempts, please try again later", CategoryClient, http.StatusTooManyRequests).
		WithDetails(map[string]any{"retry_after_seconds": retryAfterSeconds})
}

// Server error constructors

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message, CategoryServer, http.StatusInternalServerError)
}

func StorageError(message string) *AppError {
	return New(CodeStorageError, message, CategoryServer, http.StatusInternalServerError)
}

// External service error constructors

func GenerationError(message string) *AppError {
	return New(CodeGenerationError, message, CategoryExternal, http.StatusBadGateway)
}

func ExternalTimeout(service string) *AppError {
	return New(CodeExternalTimeout, fmt.Sprintf("%s request timed out", service), CategoryExternal, http.StatusGatewayTimeout)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, requestID string, err error) {
	var appErr *AppError

	switch e := err.(type) {
	case *AppError:
		appErr = e
	default:
		// Wrap unknown errors as internal errors
		appErr = InternalError("an unexpected error occurred").WithCause(err)
	}

	resp := ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
			Details:   appErr.Details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
	}
	if appErr.Code == CodeRateLimited {
		if retry, ok := appErr.Details["retry_after_seconds"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response with the request ID header
func WriteJSON(w http.ResponseWriter, requestID string, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryClient
}

// IsServerError returns true if the error is a server error
func IsServerError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryServer
}

// Code returns the application error code for err, or CodeInternalError for
// errors that are not AppErrors.
func Code(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternalError
}
