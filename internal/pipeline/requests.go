package pipeline

import (
	"github.com/google/uuid"

	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/types"
)

// Request asks for a recommendation about one subject.
type Request struct {
	SubjectID     string                  `json:"subject_id"`
	Mode          types.AnalysisMode      `json:"mode"`
	RepositoryRef string                  `json:"repository,omitempty"`
	Options       types.GenerationOptions `json:"options"`
	// Strategy forces a strategy instead of the hashed assignment.
	Strategy *types.StrategyName `json:"strategy,omitempty"`
	// Facts, when set, are used instead of the configured fact source.
	Facts *types.RawFacts `json:"facts,omitempty"`
}

// Result is a gated single recommendation recorded as a new version.
type Result struct {
	Version         *types.Version          `json:"version"`
	Candidate       *types.Candidate        `json:"candidate"`
	Validation      *types.ValidationResult `json:"validation"`
	Strategy        types.StrategyName      `json:"strategy"`
	StrategyVersion string                  `json:"strategy_version"`
	ExperimentID    uuid.UUID               `json:"experiment_id"`
	// Attempts is how many completions the quality gate made. Callers that
	// meter generations can charge for retries with it.
	Attempts    int          `json:"attempts"`
	Exhausted   bool         `json:"exhausted"`
	Transitions []Transition `json:"transitions"`
}

// Option is one of the three multi-option candidates. ExperimentID is nil
// for options served from the cache or a joined in-flight generation.
type Option struct {
	Candidate    types.Candidate         `json:"candidate"`
	Validation   *types.ValidationResult `json:"validation"`
	ExperimentID uuid.UUID               `json:"experiment_id"`
}

// OptionsResult carries the three options for a request. Options are not
// versioned until one is selected.
type OptionsResult struct {
	Options         []Option           `json:"options"`
	Strategy        types.StrategyName `json:"strategy"`
	StrategyVersion string             `json:"strategy_version"`
	CacheHit        bool               `json:"cache_hit"`
	Shared          bool               `json:"shared"`
}

// SelectRequest records a human choosing one option.
type SelectRequest struct {
	SubjectID     string                  `json:"subject_id"`
	ResultID      uuid.UUID               `json:"result_id"`
	Text          string                  `json:"text"`
	Options       types.GenerationOptions `json:"options"`
	Mode          types.AnalysisMode      `json:"mode"`
	RepositoryRef string                  `json:"repository,omitempty"`
	Strategy      types.StrategyName      `json:"strategy,omitempty"`
}

// RefineRequest revises a stored version. Version 0 means the latest.
type RefineRequest struct {
	SubjectID       string   `json:"subject_id"`
	Version         int      `json:"version,omitempty"`
	Instructions    string   `json:"instructions"`
	IncludeKeywords []string `json:"include_keywords,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
}

// RegenerateRequest rewrites a stored version. Version 0 means the latest.
type RegenerateRequest struct {
	SubjectID    string           `json:"subject_id"`
	Version      int              `json:"version,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
	Tone         string           `json:"tone,omitempty"`
	Length       types.LengthTier `json:"length,omitempty"`
}

// RefineResult is a refinement recorded as a new version.
type RefineResult struct {
	Version           *types.Version          `json:"version"`
	Candidate         *types.Candidate        `json:"candidate"`
	Validation        *types.ValidationResult `json:"validation"`
	ComplianceSummary string                  `json:"compliance_summary"`
	// ComplianceFailure explains unmet keyword constraints. The refinement
	// is still recorded.
	ComplianceFailure string `json:"compliance_failure,omitempty"`
}

// StrategyStats is the experiment snapshot for one strategy.
type StrategyStats = experiment.Stats
