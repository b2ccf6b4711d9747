package refinement

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/generation"
	"github.com/jonathan/recommendation-writer/internal/prompting"
	"github.com/jonathan/recommendation-writer/internal/types"
	"github.com/jonathan/recommendation-writer/internal/validation"
)

// Sampling temperatures. Refinement edits in place, so it runs cooler than
// a regeneration.
const (
	refineTemperature     = 0.4
	regenerateTemperature = 0.7
)

// Generator is the part of generation.Generator the refiner needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, tier types.LengthTier) (*types.Candidate, error)
}

var _ Generator = (*generation.Generator)(nil)

// RefineRequest asks for targeted changes to Original. Options supplies the
// tone and length the result is validated against; its keyword sets are
// replaced by IncludeKeywords and ExcludeKeywords.
type RefineRequest struct {
	Original        string                  `json:"original"`
	Instructions    string                  `json:"instructions"`
	IncludeKeywords []string                `json:"include_keywords,omitempty"`
	ExcludeKeywords []string                `json:"exclude_keywords,omitempty"`
	Options         types.GenerationOptions `json:"options"`
	Bundle          *types.FactBundle       `json:"-"`
	// Mode and RepositoryRef scope the prompt when Bundle is nil.
	Mode          types.AnalysisMode `json:"mode"`
	RepositoryRef string             `json:"repository_ref,omitempty"`
}

// RegenerateRequest asks for a fresh rewrite of Original. Tone and Length
// override Options when set.
type RegenerateRequest struct {
	Original      string                  `json:"original"`
	Instructions  string                  `json:"instructions,omitempty"`
	Tone          string                  `json:"tone,omitempty"`
	Length        types.LengthTier        `json:"length,omitempty"`
	Options       types.GenerationOptions `json:"options"`
	Bundle        *types.FactBundle       `json:"-"`
	Mode          types.AnalysisMode      `json:"mode"`
	RepositoryRef string                  `json:"repository_ref,omitempty"`
}

// Result is a refined candidate with its validation. ComplianceFailure is
// set when keyword constraints are still unmet.
type Result struct {
	Candidate         *types.Candidate        `json:"candidate"`
	Validation        *types.ValidationResult `json:"validation"`
	ComplianceSummary string                  `json:"compliance_summary"`
	Options           types.GenerationOptions `json:"options"`
	ComplianceFailure *ComplianceFailureError `json:"-"`
}

// Refiner runs one generation pass per request.
type Refiner struct {
	gen    Generator
	logger *zap.Logger
}

// New creates a Refiner.
func New(gen Generator, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{gen: gen, logger: logger}
}

// Refine applies instructions and keyword constraints to the original text.
func (r *Refiner) Refine(ctx context.Context, req RefineRequest) (*Result, error) {
	if strings.TrimSpace(req.Original) == "" {
		return nil, &Error{Message: "original text is required"}
	}
	opts := req.Options
	opts.IncludeKeywords = req.IncludeKeywords
	opts.ExcludeKeywords = req.ExcludeKeywords
	opts.CustomInstructions = req.Instructions
	opts.ApplyDefaults()
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	instructions := validation.ScreenInstructions(opts.CustomInstructions, "refine", r.logger)

	prompt := prompting.BuildRefinement(prompting.RefinementInput{
		Original:        req.Original,
		Instructions:    instructions,
		IncludeKeywords: opts.IncludeKeywords,
		ExcludeKeywords: opts.ExcludeKeywords,
		Bundle:          req.Bundle,
		Mode:            req.Mode,
		RepositoryRef:   req.RepositoryRef,
	})
	return r.run(ctx, prompt, refineTemperature, opts, req.Bundle)
}

// Regenerate rewrites the original text, optionally with a new tone or
// length.
func (r *Refiner) Regenerate(ctx context.Context, req RegenerateRequest) (*Result, error) {
	if strings.TrimSpace(req.Original) == "" {
		return nil, &Error{Message: "original text is required"}
	}
	opts := req.Options
	if req.Tone != "" {
		opts.Tone = req.Tone
	}
	if req.Length != "" {
		opts.Length = req.Length
	}
	opts.CustomInstructions = req.Instructions
	opts.ApplyDefaults()
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	instructions := validation.ScreenInstructions(opts.CustomInstructions, "regenerate", r.logger)

	in := prompting.RegenerationInput{
		Original:        req.Original,
		Instructions:    instructions,
		IncludeKeywords: opts.IncludeKeywords,
		ExcludeKeywords: opts.ExcludeKeywords,
		Bundle:          req.Bundle,
		Mode:            req.Mode,
		RepositoryRef:   req.RepositoryRef,
	}
	if req.Tone != "" {
		in.Tone = opts.Tone
	}
	if req.Length != "" {
		in.Length = opts.Length
	}
	return r.run(ctx, prompting.BuildRegeneration(in), regenerateTemperature, opts, req.Bundle)
}

func (r *Refiner) run(ctx context.Context, prompt string, temperature float64, opts types.GenerationOptions, bundle *types.FactBundle) (*Result, error) {
	candidate, err := r.gen.Generate(ctx, prompt, temperature, opts.Length)
	if err != nil {
		return nil, err
	}

	result := validation.Validate(candidate, &opts, bundle)
	out := &Result{
		Candidate:         candidate,
		Validation:        result,
		ComplianceSummary: result.Compliance.Summary(),
		Options:           opts,
	}
	if !result.Compliance.Compliant() {
		out.ComplianceFailure = &ComplianceFailureError{Compliance: result.Compliance}
		r.logger.Info("refinement left keyword constraints unmet",
			zap.Strings("missing", result.Compliance.Missing),
			zap.Strings("violated", result.Compliance.Violated))
	}
	return out, nil
}
