package services

import "errors"

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

// Sentinel errors surfaced by the settlement and booking flows.
var (
	ErrBookingNotFound          = errors.New("booking not found")
	ErrConnectedAccountNotFound = errors.New("connected account not found")
	ErrBookingNotCancellable    = errors.New("booking is not in a cancellable status")
	ErrNotBookingParticipant    = errors.New("user is not a participant of this booking")
	ErrInvariantViolation       = errors.New("booking already settled with a different outcome")
)

// ProcessorError wraps a failed processor call with the operation that failed,
// so callers can distinguish retryable capture failures from transfer/refund
// failures parked for manual review.
type ProcessorError struct {
	Op  string // "capture", "reverse_transfer", "refund", "transfer", "cancel_authorization"
	Err error
}

func (e *ProcessorError) Error() string { return "processor " + e.Op + " failed: " + e.Err.Error() }

func (e *ProcessorError) Unwrap() error { return e.Err }
