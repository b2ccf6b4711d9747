// Package pipeline orchestrates fact fencing, prompt assembly, strategy
// selection, generation, validation, versioning and experiment recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/facts"
	"github.com/jonathan/recommendation-writer/internal/fence"
	"github.com/jonathan/recommendation-writer/internal/generation"
	"github.com/jonathan/recommendation-writer/internal/ledger"
	"github.com/jonathan/recommendation-writer/internal/metrics"
	"github.com/jonathan/recommendation-writer/internal/prompting"
	"github.com/jonathan/recommendation-writer/internal/refinement"
	"github.com/jonathan/recommendation-writer/internal/strategy"
	"github.com/jonathan/recommendation-writer/internal/types"
	"github.com/jonathan/recommendation-writer/internal/validation"
)

// Config holds orchestration settings.
type Config struct {
	Gate            QualityGate
	BaseTemperature float64
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{Gate: DefaultQualityGate(), BaseTemperature: 0.7}
}

// Deps are the collaborators a Service needs. Logger and Now are optional.
type Deps struct {
	Facts       facts.Source
	Selector    *strategy.Selector
	Generator   *generation.Generator
	Ledger      *ledger.Ledger
	Experiments *experiment.Collector
	Logger      *zap.Logger
	Now         func() time.Time
}

// Service runs generation requests end to end.
type Service struct {
	config      Config
	facts       facts.Source
	selector    *strategy.Selector
	gen         *generation.Generator
	refiner     *refinement.Refiner
	ledger      *ledger.Ledger
	experiments *experiment.Collector
	logger      *zap.Logger
	now         func() time.Time
}

// NewService validates deps and builds a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Facts == nil:
		return nil, &Error{Message: "fact source is required"}
	case deps.Selector == nil:
		return nil, &Error{Message: "strategy selector is required"}
	case deps.Generator == nil:
		return nil, &Error{Message: "generator is required"}
	case deps.Ledger == nil:
		return nil, &Error{Message: "ledger is required"}
	case deps.Experiments == nil:
		return nil, &Error{Message: "experiment collector is required"}
	}
	if err := cfg.Gate.Validate(); err != nil {
		return nil, &Error{Message: "invalid quality gate", Cause: err}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		config:      cfg,
		facts:       deps.Facts,
		selector:    deps.Selector,
		gen:         deps.Generator,
		refiner:     refinement.New(deps.Generator, logger),
		ledger:      deps.Ledger,
		experiments: deps.Experiments,
		logger:      logger,
		now:         now,
	}, nil
}

// prepared is everything generation needs once a request has been checked.
type prepared struct {
	opts     types.GenerationOptions
	bundle   *types.FactBundle
	strategy types.Strategy
	prompt   string
}

func (s *Service) prepare(ctx context.Context, req Request, em *Emitter) (*prepared, error) {
	em.Stage("checking options", 5, types.StatusPreparing)
	if !facts.ValidSubjectID(req.SubjectID) {
		return nil, &RequestError{Message: fmt.Sprintf("invalid subject id %q", req.SubjectID)}
	}
	if !req.Mode.Valid() {
		return nil, &RequestError{Message: fmt.Sprintf("invalid analysis mode %s", req.Mode)}
	}
	opts := req.Options
	opts.ApplyDefaults()
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.CustomInstructions = validation.ScreenInstructions(opts.CustomInstructions, "generate", s.logger)

	em.Stage("loading profile data", 15, types.StatusAnalyzing)
	raw := req.Facts
	if raw == nil {
		var err error
		raw, err = s.facts.Load(ctx, req.SubjectID)
		if err != nil {
			return nil, err
		}
	}

	em.Stage("filtering evidence", 25, types.StatusAnalyzing)
	bundle, err := s.fence(raw, req.Mode, req.SubjectID, req.RepositoryRef)
	if err != nil {
		return nil, err
	}

	em.Stage("choosing a writing strategy", 30, types.StatusProcessing)
	strat, err := s.selector.Select(req.SubjectID, s.now(), req.Strategy)
	if err != nil {
		return nil, &Error{Message: "strategy selection failed", Cause: err}
	}
	metrics.StrategySelections.WithLabelValues(string(strat.Name)).Inc()

	em.Stage("building the prompt", 35, types.StatusProcessing)
	prompt := prompting.Build(bundle, &opts, strat)
	s.logger.Debug("prompt built",
		zap.String("subject", req.SubjectID),
		zap.Stringer("mode", req.Mode),
		zap.String("strategy", string(strat.Name)),
		zap.Int("evidence_categories", bundle.Populated()),
		zap.Int("prompt_chars", len(prompt)))

	return &prepared{opts: opts, bundle: bundle, strategy: strat, prompt: prompt}, nil
}

func (s *Service) fence(raw *types.RawFacts, mode types.AnalysisMode, subjectID, repoRef string) (*types.FactBundle, error) {
	bundle, err := fence.Apply(raw, mode, subjectID, repoRef)
	if err != nil {
		var violation *fence.IsolationViolationError
		if errors.As(err, &violation) {
			metrics.IsolationViolations.WithLabelValues(mode.String()).Inc()
			s.logger.Error("isolation violation",
				zap.String("subject", subjectID),
				zap.Stringer("mode", mode),
				zap.Error(err))
		}
		return nil, err
	}
	return bundle, nil
}

// Generate produces one gated recommendation and records it as a version.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	return s.generate(ctx, req, nil)
}

// GenerateStream runs Generate and reports stages through send, ending
// with exactly one complete or error event unless ctx ends first.
func (s *Service) GenerateStream(ctx context.Context, req Request, send func(types.StageEvent)) (*Result, error) {
	em := NewEmitter(ctx, send)
	res, err := s.generate(ctx, req, em)
	if err != nil {
		em.Fail(err)
		return nil, err
	}
	em.Complete(res)
	return res, nil
}

func (s *Service) generate(ctx context.Context, req Request, em *Emitter) (*Result, error) {
	start := time.Now()
	p, err := s.prepare(ctx, req, em)
	if err != nil {
		return nil, err
	}

	gate := s.config.Gate
	maxAttempts := gate.MaxAttempts()
	temperature := s.config.BaseTemperature + p.strategy.TemperatureDelta
	// Completions are not cancelled with the caller; a late result is
	// discarded below instead.
	work := context.WithoutCancel(ctx)

	outcome, err := gate.Run(ctx,
		func(_ context.Context, n int) (*types.Candidate, error) {
			em.Stage(fmt.Sprintf("writing draft %d of %d", n, maxAttempts),
				40+45*(n-1)/maxAttempts, types.StatusGenerating)
			c, err := s.gen.Generate(work, p.prompt, temperature, p.opts.Length)
			if err != nil {
				s.logger.Warn("generation attempt failed",
					zap.String("subject", req.SubjectID),
					zap.Int("attempt", n),
					zap.Error(err))
				return nil, err
			}
			c.Strategy = p.strategy.Name
			return c, nil
		},
		func(c *types.Candidate) *types.ValidationResult {
			return validation.Validate(c, &p.opts, p.bundle)
		})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	em.Stage("saving", 90, types.StatusFinalizing)
	artifact := types.Artifact{
		Text:            outcome.Candidate.Text,
		Options:         p.opts,
		Mode:            req.Mode,
		RepositoryRef:   req.RepositoryRef,
		Strategy:        p.strategy.Name,
		Compliance:      outcome.Validation.Compliance,
		StructureScore:  outcome.Validation.StructureScore,
		ConfidenceScore: outcome.Validation.ConfidenceScore,
	}
	version, err := s.ledger.Append(ctx, req.SubjectID, artifact, types.ChangeGenerate,
		fmt.Sprintf("Generated with the %s strategy", p.strategy.Name))
	if err != nil {
		return nil, err
	}

	record := s.experiments.Record(ctx, types.ExperimentResult{
		SubjectID:    req.SubjectID,
		Strategy:     p.strategy.Name,
		QualityScore: outcome.Validation.ConfidenceScore,
		Latency:      time.Since(start),
	})

	s.logger.Info("recommendation generated",
		zap.String("subject", req.SubjectID),
		zap.Int("version", version.Number),
		zap.String("strategy", string(p.strategy.Name)),
		zap.Int("attempts", outcome.Attempts),
		zap.Bool("exhausted", outcome.Exhausted),
		zap.Float64("confidence", outcome.Validation.ConfidenceScore))

	return &Result{
		Version:         version,
		Candidate:       outcome.Candidate,
		Validation:      outcome.Validation,
		Strategy:        p.strategy.Name,
		StrategyVersion: s.selector.Version(),
		ExperimentID:    record.ID,
		Attempts:        outcome.Attempts,
		Exhausted:       outcome.Exhausted,
		Transitions:     outcome.Transitions,
	}, nil
}

// GenerateOptions produces the three focus options for a request.
func (s *Service) GenerateOptions(ctx context.Context, req Request) (*OptionsResult, error) {
	return s.generateOptions(ctx, req, nil)
}

// GenerateOptionsStream runs GenerateOptions and reports stages through
// send.
func (s *Service) GenerateOptionsStream(ctx context.Context, req Request, send func(types.StageEvent)) (*OptionsResult, error) {
	em := NewEmitter(ctx, send)
	res, err := s.generateOptions(ctx, req, em)
	if err != nil {
		em.Fail(err)
		return nil, err
	}
	em.Complete(res)
	return res, nil
}

func (s *Service) generateOptions(ctx context.Context, req Request, em *Emitter) (*OptionsResult, error) {
	start := time.Now()
	p, err := s.prepare(ctx, req, em)
	if err != nil {
		return nil, err
	}

	base := s.config.BaseTemperature + p.strategy.TemperatureDelta
	res, err := s.gen.GenerateOptions(context.WithoutCancel(ctx), p.prompt, base, p.opts.Length, p.strategy.Name,
		func(done, total int) {
			em.Stage(fmt.Sprintf("wrote option %d of %d", done, total), 35+50*done/total, types.StatusGenerating)
		})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	em.Stage("scoring options", 90, types.StatusFinalizing)
	fresh := !res.CacheHit && !res.Shared
	latency := time.Since(start)
	out := &OptionsResult{
		Options:         make([]Option, len(res.Candidates)),
		Strategy:        p.strategy.Name,
		StrategyVersion: s.selector.Version(),
		CacheHit:        res.CacheHit,
		Shared:          res.Shared,
	}
	for i, c := range res.Candidates {
		result := validation.Validate(&c, &p.opts, p.bundle)
		opt := Option{Candidate: c, Validation: result}
		if fresh {
			opt.ExperimentID = s.experiments.Record(ctx, types.ExperimentResult{
				SubjectID:    req.SubjectID,
				Strategy:     p.strategy.Name,
				QualityScore: result.ConfidenceScore,
				Latency:      latency,
			}).ID
		}
		out.Options[i] = opt
	}

	s.logger.Info("options generated",
		zap.String("subject", req.SubjectID),
		zap.String("strategy", string(p.strategy.Name)),
		zap.Bool("cache_hit", res.CacheHit),
		zap.Bool("shared", res.Shared))
	return out, nil
}

// SelectOption records the chosen option as a new version and, when the
// option came from a fresh generation, marks it selected in the experiment.
func (s *Service) SelectOption(ctx context.Context, req SelectRequest) (*types.Version, error) {
	if !facts.ValidSubjectID(req.SubjectID) {
		return nil, &RequestError{Message: fmt.Sprintf("invalid subject id %q", req.SubjectID)}
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, &RequestError{Message: "selected text is required"}
	}
	opts := req.Options
	opts.ApplyDefaults()
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	strat := req.Strategy
	if req.ResultID != uuid.Nil {
		recorded, ok, err := s.experiments.Result(ctx, req.ResultID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, experiment.ErrUnknownResult
		}
		if recorded.SubjectID != req.SubjectID {
			return nil, &RequestError{Message: "that option belongs to another developer"}
		}
		if _, err := s.experiments.MarkSelected(ctx, req.ResultID); err != nil {
			return nil, err
		}
		strat = recorded.Strategy
	}

	result := validation.Validate(&types.Candidate{Text: req.Text}, &opts, nil)
	artifact := types.Artifact{
		Text:            req.Text,
		Options:         opts,
		Mode:            req.Mode,
		RepositoryRef:   req.RepositoryRef,
		Strategy:        strat,
		Compliance:      result.Compliance,
		StructureScore:  result.StructureScore,
		ConfidenceScore: result.ConfidenceScore,
	}
	return s.ledger.Append(ctx, req.SubjectID, artifact, types.ChangeSelect, "Selected a generated option")
}

// baseVersion returns the version a refinement starts from.
func (s *Service) baseVersion(ctx context.Context, subjectID string, number int) (*types.Version, error) {
	if number == 0 {
		return s.ledger.Latest(ctx, subjectID)
	}
	return s.ledger.Get(ctx, subjectID, number)
}

// bundleFor re-fences the subject's facts for a stored artifact. Missing
// facts are not an error; refinement then runs without extra evidence.
func (s *Service) bundleFor(ctx context.Context, subjectID string, a types.Artifact) (*types.FactBundle, error) {
	raw, err := s.facts.Load(ctx, subjectID)
	if err != nil {
		var notFound *facts.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.fence(raw, a.Mode, subjectID, a.RepositoryRef)
}

// Refine revises a stored version and records the result as a new version.
func (s *Service) Refine(ctx context.Context, req RefineRequest) (*RefineResult, error) {
	base, err := s.baseVersion(ctx, req.SubjectID, req.Version)
	if err != nil {
		return nil, err
	}
	bundle, err := s.bundleFor(ctx, req.SubjectID, base.Artifact)
	if err != nil {
		return nil, err
	}

	res, err := s.refiner.Refine(ctx, refinement.RefineRequest{
		Original:        base.Artifact.Text,
		Instructions:    req.Instructions,
		IncludeKeywords: req.IncludeKeywords,
		ExcludeKeywords: req.ExcludeKeywords,
		Options:         base.Artifact.Options,
		Bundle:          bundle,
		Mode:            base.Artifact.Mode,
		RepositoryRef:   base.Artifact.RepositoryRef,
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Refined version %d: %s", base.Number, res.ComplianceSummary)
	if req.Instructions != "" {
		description = fmt.Sprintf("Refined version %d: %s", base.Number, truncate(req.Instructions, 120))
	}
	return s.recordRefinement(ctx, base, res, types.ChangeRefine, description)
}

// Regenerate rewrites a stored version and records the result as a new
// version.
func (s *Service) Regenerate(ctx context.Context, req RegenerateRequest) (*RefineResult, error) {
	base, err := s.baseVersion(ctx, req.SubjectID, req.Version)
	if err != nil {
		return nil, err
	}
	bundle, err := s.bundleFor(ctx, req.SubjectID, base.Artifact)
	if err != nil {
		return nil, err
	}

	res, err := s.refiner.Regenerate(ctx, refinement.RegenerateRequest{
		Original:      base.Artifact.Text,
		Instructions:  req.Instructions,
		Tone:          req.Tone,
		Length:        req.Length,
		Options:       base.Artifact.Options,
		Bundle:        bundle,
		Mode:          base.Artifact.Mode,
		RepositoryRef: base.Artifact.RepositoryRef,
	})
	if err != nil {
		return nil, err
	}
	return s.recordRefinement(ctx, base, res, types.ChangeRegenerate,
		fmt.Sprintf("Regenerated version %d", base.Number))
}

func (s *Service) recordRefinement(ctx context.Context, base *types.Version, res *refinement.Result, change types.ChangeType, description string) (*RefineResult, error) {
	artifact := base.Artifact
	artifact.Text = res.Candidate.Text
	artifact.Options = res.Options
	artifact.Compliance = res.Validation.Compliance
	artifact.StructureScore = res.Validation.StructureScore
	artifact.ConfidenceScore = res.Validation.ConfidenceScore

	version, err := s.ledger.Append(ctx, base.SubjectID, artifact, change, description)
	if err != nil {
		return nil, err
	}
	out := &RefineResult{
		Version:           version,
		Candidate:         res.Candidate,
		Validation:        res.Validation,
		ComplianceSummary: res.ComplianceSummary,
	}
	if res.ComplianceFailure != nil {
		out.ComplianceFailure = res.ComplianceFailure.Error()
	}
	return out, nil
}

// History returns every version for a subject.
func (s *Service) History(ctx context.Context, subjectID string) ([]types.Version, error) {
	return s.ledger.History(ctx, subjectID)
}

// Compare diffs two versions of a subject.
func (s *Service) Compare(ctx context.Context, subjectID string, a, b int) (*types.VersionDiff, error) {
	return s.ledger.Compare(ctx, subjectID, a, b)
}

// Revert appends a copy of a prior version.
func (s *Service) Revert(ctx context.Context, subjectID string, target int, reason string) (*types.Version, error) {
	return s.ledger.Revert(ctx, subjectID, target, reason)
}

// Stats returns experiment statistics ordered by strategy.
func (s *Service) Stats() []StrategyStats {
	return experiment.Sorted(s.experiments.Snapshot())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
