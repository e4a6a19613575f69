package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUnauthorized  = errors.New("user is not authorized for this order")
	// ErrAttemptConflict means another attempt already took the same number.
	ErrAttemptConflict = errors.New("validation attempt number already used")
	ErrInvalidPayload  = errors.New("invalid finalize payload")
	ErrPatientNotFound = errors.New("patient not found")
)
