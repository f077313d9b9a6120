package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so derived copies still compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithDetails(details any) *AppError {
	c := *e
	c.Details = details
	return &c
}

func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

func (e *AppError) WithMessage(message string) *AppError {
	c := *e
	c.Message = message
	return &c
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetAppError returns the first AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// ============================================================================
// Common errors
// ============================================================================

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Bad request",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		HTTPStatus: http.StatusConflict,
	}

	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, please try again later",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// ============================================================================
// Auth errors
// ============================================================================

var (
	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid username or password",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidToken = &AppError{
		Code:       "INVALID_TOKEN",
		Message:    "Invalid token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpired = &AppError{
		Code:       "TOKEN_EXPIRED",
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidSignature = &AppError{
		Code:       "INVALID_SIGNATURE",
		Message:    "Webhook signature verification failed",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ============================================================================
// User and session errors
// ============================================================================

var (
	ErrInvalidPhone = &AppError{
		Code:       "INVALID_PHONE",
		Message:    "Invalid phone number format",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserInactive = &AppError{
		Code:       "USER_INACTIVE",
		Message:    "User account is suspended or blocked",
		HTTPStatus: http.StatusForbidden,
	}

	ErrSessionLocked = &AppError{
		Code:       "SESSION_LOCKED",
		Message:    "Another message for this user is being processed",
		HTTPStatus: http.StatusConflict,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_TRANSITION",
		Message:    "State transition not allowed",
		HTTPStatus: http.StatusConflict,
	}
)

// ============================================================================
// Wallet and transaction errors
// ============================================================================

var (
	ErrInsufficientFunds = &AppError{
		Code:       "INSUFFICIENT_FUNDS",
		Message:    "Insufficient balance for this transaction",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidAmount = &AppError{
		Code:       "INVALID_AMOUNT",
		Message:    "Amount must be a positive whole number",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTransactionNotFound = &AppError{
		Code:       "TRANSACTION_NOT_FOUND",
		Message:    "Transaction not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNotGiftCard = &AppError{
		Code:       "NOT_GIFTCARD",
		Message:    "Transaction is not a gift card sale",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrAlreadyProcessed = &AppError{
		Code:       "ALREADY_PROCESSED",
		Message:    "Transaction has already been processed",
		HTTPStatus: http.StatusConflict,
	}

	ErrAmountMismatch = &AppError{
		Code:       "AMOUNT_MISMATCH",
		Message:    "Paid amount does not match the transaction",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ============================================================================
// Provider errors
// ============================================================================

var (
	ErrProviderFailed = &AppError{
		Code:       "PROVIDER_ERROR",
		Message:    "Fulfillment provider could not complete the request",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrPaymentFailed = &AppError{
		Code:       "PAYMENT_FAILED",
		Message:    "Payment could not be initiated",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrMessagingUnavailable = &AppError{
		Code:       "MESSAGING_UNAVAILABLE",
		Message:    "Messaging provider is unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
