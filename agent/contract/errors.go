package contract

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConnection  = errors.New("connection failed")
	ErrProtocol    = errors.New("protocol violation")
	ErrTransport   = errors.New("transport failed")
	ErrCircuitOpen = errors.New("circuit open")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("slot conflict")
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolRejected marks a call the endpoint answered with an error payload.
	ErrToolRejected = errors.New("tool rejected request")
)

// CircuitOpenError is returned when a call is short-circuited by an open breaker.
// No transport attempt was made.
type CircuitOpenError struct {
	Endpoint   string
	OpenedAt   time.Time
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for endpoint=%s, retry after %s", e.Endpoint, e.RetryAfter.Round(time.Millisecond))
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// ExhaustedError reports a call that failed on every attempt.
type ExhaustedError struct {
	Tool     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("Tool call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
