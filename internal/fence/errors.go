// Package fence filters raw profile and repository facts down to the set an
// analysis mode is allowed to see.
package fence

import (
	"fmt"
	"strings"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// IsolationViolationError is raised when a fenced bundle still carries a
// category its mode forbids. It is fatal and never retried.
type IsolationViolationError struct {
	Mode       types.AnalysisMode
	Categories []types.FactCategory
}

func (e *IsolationViolationError) Error() string {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		names[i] = string(c)
	}
	return fmt.Sprintf("isolation violation: %s bundle contains forbidden facts: %s",
		e.Mode, strings.Join(names, ", "))
}

// RepositoryNotFoundError is raised when a repository-scoped mode names a
// repository the subject does not have.
type RepositoryNotFoundError struct {
	SubjectID string
	RepoRef   string
}

func (e *RepositoryNotFoundError) Error() string {
	if e.RepoRef == "" {
		return fmt.Sprintf("repository reference is required for subject %s", e.SubjectID)
	}
	return fmt.Sprintf("repository %q not found for subject %s", e.RepoRef, e.SubjectID)
}

// Error represents a general fencing error
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fence error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("fence error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
