// Package generation drives the completion service to produce normalized
// recommendation candidates, singly or as the three-focus option set.
package generation

import "fmt"

// UpstreamError reports a failed or empty completion.
type UpstreamError struct {
	Message string
	Cause   error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream generation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream generation error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// CacheError reports a result that could not be encoded or decoded for the
// cache. Store failures themselves are logged and never surfaced.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}
