package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the domain wraps exactly one of these.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrStorage      = errors.New("storage failure")
	ErrCache        = errors.New("cache failure")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodePlanNotFound      = "PLAN_NOT_FOUND"
	ErrCodeInstallmentLookup = "INSTALLMENT_NOT_FOUND"
	ErrCodeAlreadyPaid       = "INSTALLMENT_ALREADY_PAID"
	ErrCodeNotPaid           = "INSTALLMENT_NOT_PAID"
	ErrCodeStorageError      = "STORAGE_ERROR"
	ErrCodeCacheError        = "CACHE_ERROR"
)

// NewValidationError reports malformed construction or edit arguments.
func NewValidationError(format string, args ...any) *BusinessError {
	return NewBusinessError(ErrCodeValidation, fmt.Sprintf(format, args...), ErrValidation)
}

func WrapPlanNotFound(planID string) *BusinessError {
	return NewBusinessError(
		ErrCodePlanNotFound,
		fmt.Sprintf("Plan with ID %s not found", planID),
		ErrNotFound,
	)
}

func WrapInstallmentNotFound(index int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentLookup,
		fmt.Sprintf("Installment #%d does not exist", index),
		ErrNotFound,
	)
}

func WrapAlreadyPaid(index int) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyPaid,
		fmt.Sprintf("Installment #%d is already paid", index),
		ErrInvalidState,
	)
}

func WrapNotPaid(index int) *BusinessError {
	return NewBusinessError(
		ErrCodeNotPaid,
		fmt.Sprintf("Installment #%d is not paid", index),
		ErrInvalidState,
	)
}

func WrapStorageError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeStorageError,
		"storage operation failed",
		fmt.Errorf("%w: %w", ErrStorage, err),
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		fmt.Errorf("%w: %w", ErrCache, err),
	)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err refers to a missing plan or installment.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState reports whether err is a status conflict.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
