package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Access transitions
	ErrCodeIdentityNotFound   ErrorCode = "IDENTITY_NOT_FOUND"
	ErrCodeIdentityBlocked    ErrorCode = "IDENTITY_BLOCKED"
	ErrCodeVehicleNotFound    ErrorCode = "VEHICLE_NOT_FOUND"
	ErrCodeVehicleNotOwned    ErrorCode = "VEHICLE_NOT_OWNED"
	ErrCodeNoOpenSession      ErrorCode = "NO_OPEN_SESSION"
	ErrCodeSessionAlreadyOpen ErrorCode = "SESSION_ALREADY_OPEN"

	// Temporary credentials
	ErrCodeCredentialStillValid ErrorCode = "CREDENTIAL_STILL_VALID"
	ErrCodeCredentialExpired    ErrorCode = "CREDENTIAL_EXPIRED"

	// Dwell alerts
	ErrCodeInvalidAlertTransition ErrorCode = "INVALID_ALERT_TRANSITION"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func IdentityNotFound(id string) *AppError {
	return New(ErrCodeIdentityNotFound, "Identity not found").WithDetails(map[string]string{"identityId": id})
}

func IdentityBlocked(id string) *AppError {
	return New(ErrCodeIdentityBlocked, "Identity is blocked from campus access").WithDetails(map[string]string{"identityId": id})
}

func VehicleNotFound(id string) *AppError {
	return New(ErrCodeVehicleNotFound, "Vehicle not found").WithDetails(map[string]string{"vehicleId": id})
}

func VehicleNotOwned(vehicleID, identityID string) *AppError {
	return New(ErrCodeVehicleNotOwned, "Vehicle does not belong to this identity").
		WithDetails(map[string]string{"vehicleId": vehicleID, "identityId": identityID})
}

func NoOpenSession(identityID string) *AppError {
	return New(ErrCodeNoOpenSession, "No open session for this identity").
		WithDetails(map[string]string{"identityId": identityID})
}

func SessionAlreadyOpen(identityID string) *AppError {
	return New(ErrCodeSessionAlreadyOpen, "An open session already exists; close it first").
		WithDetails(map[string]string{"identityId": identityID})
}

func CredentialStillValid(identityID string) *AppError {
	return New(ErrCodeCredentialStillValid, "Temporary credential is still valid").
		WithDetails(map[string]string{"identityId": identityID})
}

func CredentialExpiredOrMissing(identityID string) *AppError {
	return New(ErrCodeCredentialExpired, "No active temporary credential for this identity").
		WithDetails(map[string]string{"identityId": identityID})
}

func InvalidAlertTransition(from, to string) *AppError {
	return New(ErrCodeInvalidAlertTransition, fmt.Sprintf("Cannot move alert from %s to %s", from, to))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Storage(cause error) *AppError {
	return Wrap(ErrCodeStorageUnavailable, "Storage unavailable", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
