package fleet

import (
	"errors"
	"fmt"
)

// ValidationErrorCode categorizes rejected mutations.
type ValidationErrorCode string

const (
	// ErrCodeFloorOutOfRange indicates floor < 0 or floor >= TotalFloors.
	ErrCodeFloorOutOfRange ValidationErrorCode = "FLOOR_OUT_OF_RANGE"

	// ErrCodeUnknownElevator indicates an id not present in the fleet.
	ErrCodeUnknownElevator ValidationErrorCode = "UNKNOWN_ELEVATOR"

	// ErrCodeInvalidDirection indicates a hall call direction other than U or D.
	ErrCodeInvalidDirection ValidationErrorCode = "INVALID_DIRECTION"

	// ErrCodeInvalidBuilding indicates a building with no floors or no elevators.
	ErrCodeInvalidBuilding ValidationErrorCode = "INVALID_BUILDING"
)

// ValidationError is returned synchronously by store mutations when the
// input is out of range. State is never modified when it is returned, and
// callers must not issue the matching backend request.
type ValidationError struct {
	Code    ValidationErrorCode
	Message string

	// Elevator and Floor identify the rejected reference when relevant.
	Elevator int
	Floor    int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationCode returns the code of a wrapped ValidationError, or "".
func ValidationCode(err error) ValidationErrorCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// NewFloorError reports a floor outside [0, totalFloors).
func NewFloorError(floor, totalFloors int) *ValidationError {
	return &ValidationError{
		Code:     ErrCodeFloorOutOfRange,
		Message:  fmt.Sprintf("floor %d outside [0, %d)", floor, totalFloors),
		Elevator: -1,
		Floor:    floor,
	}
}

// NewElevatorError reports an unknown elevator id.
func NewElevatorError(id int) *ValidationError {
	return &ValidationError{
		Code:     ErrCodeUnknownElevator,
		Message:  fmt.Sprintf("unknown elevator %d", id),
		Elevator: id,
		Floor:    -1,
	}
}

// NewDirectionError reports a hall call direction that is not U or D.
func NewDirectionError(dir Direction) *ValidationError {
	return &ValidationError{
		Code:     ErrCodeInvalidDirection,
		Message:  fmt.Sprintf("hall call direction must be U or D, got %q", dir),
		Elevator: -1,
		Floor:    -1,
	}
}

// NewBuildingError reports an unusable building size.
func NewBuildingError(floors, count int) *ValidationError {
	return &ValidationError{
		Code:     ErrCodeInvalidBuilding,
		Message:  fmt.Sprintf("building needs at least 1 floor and 1 elevator, got floors=%d elevators=%d", floors, count),
		Elevator: -1,
		Floor:    -1,
	}
}

// ParseError describes an inbound message that could not be decoded.
// Parse errors are logged and the message dropped; they never affect the
// connection.
type ParseError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
