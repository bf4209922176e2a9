package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the settlement failure taxonomy. Callers clone
// these with identifiers (event id, session index, amounts) so every rejection
// is self-diagnosing.
var (
	// Not-found.
	ErrEventNotFound   = New("EVENT_NOT_FOUND", http.StatusNotFound, "event does not exist")
	ErrSessionNotFound = New("SESSION_NOT_FOUND", http.StatusNotFound, "session index out of range")
	ErrNotFound        = New("NOT_FOUND", http.StatusNotFound, "resource not found")

	// Temporal.
	ErrSaleClosed      = New("SALE_PERIOD_CLOSED", http.StatusUnprocessableEntity, "enrollment is outside the sale period")
	ErrSessionInactive = New("SESSION_NOT_ACTIVE", http.StatusUnprocessableEntity, "session window is not open")
	ErrSessionNotOver  = New("SESSION_NOT_OVER", http.StatusUnprocessableEntity, "session has not ended yet")

	// Authorization.
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotOrganizer = New("NOT_ORGANIZER", http.StatusForbidden, "caller is not the event organizer")
	ErrNotAdmin     = New("NOT_ADMIN", http.StatusForbidden, "caller is not the protocol admin")

	// State-conflict.
	ErrAlreadyEnrolled = New("ALREADY_ENROLLED", http.StatusConflict, "participant already enrolled")
	ErrAlreadyAttended = New("ALREADY_ATTENDED", http.StatusConflict, "session already attended")
	ErrCodeAlreadySet  = New("CODE_ALREADY_SET", http.StatusConflict, "session code already set")
	ErrAlreadyClaimed  = New("ALREADY_CLAIMED", http.StatusConflict, "unattended fees already claimed")
	ErrConflict        = New("CONFLICT", http.StatusConflict, "conflict")

	// Insufficient-funds.
	ErrInsufficientAllowance = New("INSUFFICIENT_ALLOWANCE", http.StatusPaymentRequired, "token allowance below required amount")
	ErrInsufficientBalance   = New("INSUFFICIENT_BALANCE", http.StatusPaymentRequired, "token balance below required amount")

	// Business-rule.
	ErrSessionCount    = New("INVALID_SESSION_COUNT", http.StatusUnprocessableEntity, "session count out of bounds")
	ErrSaleWindow      = New("INVALID_SALE_WINDOW", http.StatusUnprocessableEntity, "invalid sale window")
	ErrSessionSchedule = New("INVALID_SESSION_SCHEDULE", http.StatusUnprocessableEntity, "last session must end after the sale period")
	ErrCodeLength      = New("INVALID_CODE_LENGTH", http.StatusUnprocessableEntity, "session code has the wrong length")
	ErrCodeMismatch    = New("CODE_MISMATCH", http.StatusUnprocessableEntity, "supplied code does not match")
	ErrNothingVested   = New("NOTHING_VESTED", http.StatusUnprocessableEntity, "vested balance below one release")
	ErrNothingToClaim  = New("NOTHING_TO_CLAIM", http.StatusUnprocessableEntity, "no claimable amount available")
	ErrNoUnattended    = New("NO_UNATTENDED_FEES", http.StatusUnprocessableEntity, "no unattended fees for session")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Clonef is Clone with formatting, used to embed offending identifiers into
// the rejection message.
func Clonef(err *Error, format string, args ...interface{}) *Error {
	return Clone(err, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
