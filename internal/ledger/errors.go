// Package ledger keeps the append-only version history of each subject's
// recommendation.
package ledger

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned by a Store when the version number being
// inserted already exists.
var ErrVersionConflict = errors.New("version number already exists")

// VersionNotFoundError is returned when a subject has no such version.
type VersionNotFoundError struct {
	SubjectID string
	Number    int
}

func (e *VersionNotFoundError) Error() string {
	if e.Number == 0 {
		return fmt.Sprintf("no versions for subject %q", e.SubjectID)
	}
	return fmt.Sprintf("version %d not found for subject %q", e.Number, e.SubjectID)
}

// Error represents a ledger failure with an underlying cause.
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
