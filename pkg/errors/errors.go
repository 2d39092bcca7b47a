package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates insufficient permissions
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Liquidation-specific errors

var (
	// ErrCircuitBreakerTripped indicates the liquidation circuit breaker is latched
	ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")

	// ErrLoanNotLiquidatable indicates the loan no longer meets liquidation conditions
	ErrLoanNotLiquidatable = errors.New("loan not liquidatable")

	// ErrLoanNotActive indicates the loan already left active status
	ErrLoanNotActive = errors.New("loan not active")

	// ErrLockNotHeld indicates a release was attempted without holding the lock
	ErrLockNotHeld = errors.New("lock not held")

	// ErrNoSigningIdentity indicates no liquidator keypair is configured
	ErrNoSigningIdentity = errors.New("no liquidator signing identity")

	// ErrSettlementFailed indicates the settlement executor rejected or failed the call
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrLiquidityUnavailable indicates the pool liquidity source could not be read
	ErrLiquidityUnavailable = errors.New("pool liquidity unavailable")

	// ErrTokenDisabled indicates the collateral token is blacklisted or disabled
	ErrTokenDisabled = errors.New("token disabled")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
