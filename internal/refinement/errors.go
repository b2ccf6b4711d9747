// Package refinement revises an existing recommendation under new
// instructions and keyword constraints.
package refinement

import (
	"fmt"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// ComplianceFailureError reports that a refinement finished but the result
// still misses required keywords or contains excluded ones. It is attached
// to the Result, never returned as the call's error.
type ComplianceFailureError struct {
	Compliance types.KeywordCompliance
}

func (e *ComplianceFailureError) Error() string {
	return fmt.Sprintf("refinement did not meet keyword constraints: %s", e.Compliance.Summary())
}

// Error represents a refinement request that could not run.
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
