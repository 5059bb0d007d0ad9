package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Larder error code.
type ErrorCode string

const (
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"         // 400
	ErrInvalidMealType     ErrorCode = "INVALID_MEAL_TYPE"     // 400
	ErrUnsupportedUnit     ErrorCode = "UNSUPPORTED_UNIT"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrPieceWeightRequired ErrorCode = "PIECE_WEIGHT_REQUIRED" // 422
	ErrInternal            ErrorCode = "INTERNAL"              // 500
)

// LarderError represents a structured error with code, status, and details.
type LarderError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *LarderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidInput creates a 400 error for bad caller-supplied values.
func NewInvalidInput(msg string) *LarderError {
	return &LarderError{
		Code:    ErrInvalidInput,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidMealType creates a 400 error for a meal slot outside breakfast/lunch/dinner/snacks.
func NewInvalidMealType(mealType string) *LarderError {
	return &LarderError{
		Code:    ErrInvalidMealType,
		Status:  400,
		Message: fmt.Sprintf("invalid meal type %q: must be one of breakfast, lunch, dinner, snacks", mealType),
		Details: map[string]any{"meal_type": mealType},
	}
}

// NewUnsupportedUnit creates a 400 error when a unit cannot be converted to grams.
func NewUnsupportedUnit(unit string) *LarderError {
	return &LarderError{
		Code:    ErrUnsupportedUnit,
		Status:  400,
		Message: fmt.Sprintf("unsupported unit %q", unit),
		Details: map[string]any{"unit": unit},
	}
}

// NewPieceWeightRequired creates a 422 error when a count unit is used for a food
// with no known piece weight.
func NewPieceWeightRequired(food string) *LarderError {
	return &LarderError{
		Code:    ErrPieceWeightRequired,
		Status:  422,
		Message: fmt.Sprintf("piece weight unknown for %q; log it by weight instead", food),
		Details: map[string]any{"food": food},
	}
}

// NewNotFound creates a 404 error for a missing ledger, entry, or food record.
func NewNotFound(what, identifier string) *LarderError {
	return &LarderError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *LarderError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &LarderError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a LarderError with the given code.
func Is(err error, code ErrorCode) bool {
	var lErr *LarderError
	if stderrors.As(err, &lErr) {
		return lErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 500 for foreign errors.
func StatusOf(err error) int {
	var lErr *LarderError
	if stderrors.As(err, &lErr) && lErr.Status != 0 {
		return lErr.Status
	}
	return 500
}
