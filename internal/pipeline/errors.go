package pipeline

import (
	"fmt"
)

// UpstreamGenerationError is returned when every gate attempt failed at the
// completion service.
type UpstreamGenerationError struct {
	Attempts int
	Cause    error
}

func (e *UpstreamGenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *UpstreamGenerationError) Unwrap() error {
	return e.Cause
}

// QualityGateExhaustedError notes that the gate ran out of attempts below
// its minimum score. The best candidate is still returned; this error is
// recorded on the result rather than returned.
type QualityGateExhaustedError struct {
	Attempts  int
	BestScore float64
	MinScore  float64
}

func (e *QualityGateExhaustedError) Error() string {
	return fmt.Sprintf("quality gate exhausted after %d attempt(s): best score %.1f is below %.1f",
		e.Attempts, e.BestScore, e.MinScore)
}

// RequestError reports a malformed request. Its message is safe to show to
// callers.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Error represents a general pipeline error
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
