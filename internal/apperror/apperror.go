package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// OTP-specific sentinels. A missing, expired, or mismatched code is
	// client-fixable by requesting a fresh one, so all three map to 400.
	// A mail dispatch failure is a downstream fault and maps to 500.
	ErrNoChallenge = errors.New("otp not found")
	ErrExpired     = errors.New("otp expired")
	ErrMismatch    = errors.New("otp mismatch")
	ErrDelivery    = errors.New("delivery failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage returns a not-found error with a caller-supplied message,
// for cases where the generic "<resource> not found with id <id>" reads
// poorly (e.g. "User not found. Please sign up first.").
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or invalid credentials.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// NoChallenge is returned when a verification attempt finds no live OTP
// challenge for the email — either none was ever issued or a prior
// attempt already consumed it.
func NoChallenge() *AppError {
	return &AppError{
		Err:     ErrNoChallenge,
		Message: "OTP not found. Please request again.",
	}
}

// Expired is returned when the challenge exists but its expiry instant has
// passed. The entry has already been consumed by the time this is returned;
// re-verifying requires a fresh issuance.
func Expired() *AppError {
	return &AppError{
		Err:     ErrExpired,
		Message: "OTP expired. Please request again.",
	}
}

// Mismatch is returned when the submitted code does not match the stored
// one. Like Expired, the challenge is already consumed.
func Mismatch() *AppError {
	return &AppError{
		Err:     ErrMismatch,
		Message: "Invalid OTP. Please try again.",
	}
}

// DeliveryFailed wraps a mail dispatch error. The underlying cause is kept
// in the chain for logs; Message is all the client sees.
func DeliveryFailed(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrDelivery, err),
		Message: "Failed to send OTP",
	}
}
