package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/facts"
	"github.com/jonathan/recommendation-writer/internal/fence"
	"github.com/jonathan/recommendation-writer/internal/generation"
	"github.com/jonathan/recommendation-writer/internal/ledger"
	"github.com/jonathan/recommendation-writer/internal/pipeline"
	"github.com/jonathan/recommendation-writer/internal/refinement"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// ErrSubjectMismatch indicates the bearer token belongs to another subject.
type ErrSubjectMismatch struct {
	Subject string
}

func (e *ErrSubjectMismatch) Error() string {
	return fmt.Sprintf("token is not valid for subject %q", e.Subject)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		mismatch      *ErrSubjectMismatch
		optErr        *types.OptionsError
		reqErr        *pipeline.RequestError
		badFacts      *facts.ValidationError
		refineErr     *refinement.Error
		noFacts       *facts.NotFoundError
		repoMissing   *fence.RepositoryNotFoundError
		noVersion     *ledger.VersionNotFoundError
		upstream      *pipeline.UpstreamGenerationError
		genErr        *generation.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &optErr), errors.As(err, &reqErr),
		errors.As(err, &badFacts), errors.As(err, &refineErr):
		return http.StatusBadRequest
	case errors.As(err, &mismatch):
		return http.StatusForbidden
	case errors.As(err, &noFacts), errors.As(err, &repoMissing), errors.As(err, &noVersion),
		errors.Is(err, experiment.ErrUnknownResult):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &upstream), errors.As(err, &genErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text returned to callers.
func publicMessage(err error) string {
	var (
		validationErr *ErrValidation
		mismatch      *ErrSubjectMismatch
	)
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &mismatch):
		return "You are not allowed to act for this developer."
	}
	return pipeline.PublicMessage(err)
}
