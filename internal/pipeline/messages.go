package pipeline

import (
	"context"
	"errors"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/facts"
	"github.com/jonathan/recommendation-writer/internal/fence"
	"github.com/jonathan/recommendation-writer/internal/generation"
	"github.com/jonathan/recommendation-writer/internal/ledger"
	"github.com/jonathan/recommendation-writer/internal/refinement"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// PublicMessage maps an error to text that is safe to show end users. It
// never includes prompt text or raw completion-service errors.
func PublicMessage(err error) string {
	var (
		optErr      *types.OptionsError
		reqErr      *RequestError
		isolation   *fence.IsolationViolationError
		repoMissing *fence.RepositoryNotFoundError
		noFacts     *facts.NotFoundError
		badFacts    *facts.ValidationError
		upstream    *UpstreamGenerationError
		genErr      *generation.UpstreamError
		noVersion   *ledger.VersionNotFoundError
		refineErr   *refinement.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &optErr):
		return optErr.Error()
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.As(err, &isolation):
		return "The recommendation could not be generated because the request mixed data from different scopes."
	case errors.As(err, &repoMissing):
		return "The requested repository was not found for this developer."
	case errors.As(err, &noFacts):
		return "No profile data is available for this developer yet."
	case errors.As(err, &badFacts):
		return "The supplied profile data is malformed."
	case errors.As(err, &upstream), errors.As(err, &genErr):
		return "The writing service is unavailable right now. Please try again in a moment."
	case errors.As(err, &noVersion):
		return noVersion.Error()
	case errors.As(err, &refineErr):
		return refineErr.Message
	case errors.Is(err, experiment.ErrUnknownResult):
		return "That option is no longer available for selection."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long and was stopped."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	}
	return "Something went wrong while writing the recommendation."
}
