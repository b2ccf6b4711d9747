package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StrategyName identifies a prompt-augmentation variant.
type StrategyName string

// Strategy names.
const (
	StrategyBaseline       StrategyName = "baseline"
	StrategyFewShotHeavy   StrategyName = "few_shot_heavy"
	StrategyStoryFirst     StrategyName = "story_first"
	StrategyEvidenceHeavy  StrategyName = "evidence_heavy"
	StrategyEmotionalFocus StrategyName = "emotional_focus"
	StrategyConcise        StrategyName = "concise"
)

// Strategy is a named variant carrying a temperature delta and extra
// instruction clauses for the prompt.
type Strategy struct {
	Name             StrategyName `json:"name" yaml:"name"`
	TemperatureDelta float64      `json:"temperature_delta" yaml:"temperature_delta"`
	Clauses          []string     `json:"clauses,omitempty" yaml:"clauses,omitempty"`
}

// Focus is the angle of one option in the multi-option path.
type Focus string

// Multi-option focuses.
const (
	FocusTechnicalExpertise Focus = "technical_expertise"
	FocusCollaboration      Focus = "collaboration"
	FocusLeadershipGrowth   Focus = "leadership_growth"
)

// Candidate is one generated, normalized text.
type Candidate struct {
	Text           string       `json:"text"`
	Title          string       `json:"title"`
	WordCount      int          `json:"word_count"`
	ParagraphCount int          `json:"paragraph_count"`
	Strategy       StrategyName `json:"strategy,omitempty"`
	Focus          Focus        `json:"focus,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
	Temperature    float64      `json:"temperature"`
}

// KeywordCompliance records how a text honored include/exclude keywords.
type KeywordCompliance struct {
	Included []string `json:"included,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Avoided  []string `json:"avoided,omitempty"`
	Violated []string `json:"violated,omitempty"`
}

// Required returns the number of required keywords.
func (k KeywordCompliance) Required() int { return len(k.Included) + len(k.Missing) }

// Excluded returns the number of excluded keywords.
func (k KeywordCompliance) Excluded() int { return len(k.Avoided) + len(k.Violated) }

// Compliant reports whether every required keyword is present and every
// excluded keyword is absent.
func (k KeywordCompliance) Compliant() bool {
	return len(k.Missing) == 0 && len(k.Violated) == 0
}

// Summary renders a one-line human-readable report.
func (k KeywordCompliance) Summary() string {
	return fmt.Sprintf("included %d of %d required terms; avoided %d of %d excluded terms",
		len(k.Included), k.Required(), len(k.Avoided), k.Excluded())
}

// ConfidenceBreakdown holds the sub-scores of the confidence score.
type ConfidenceBreakdown struct {
	DataCompleteness float64 `json:"data_completeness"` // 0-25
	ContentQuality   float64 `json:"content_quality"`   // 0-20
	PromptAlignment  float64 `json:"prompt_alignment"`  // 0-20
	ReadabilityTone  float64 `json:"readability_tone"`  // 0-15
	Uniqueness       float64 `json:"uniqueness"`        // 0-10
}

// Total sums the sub-scores.
func (b ConfidenceBreakdown) Total() float64 {
	return b.DataCompleteness + b.ContentQuality + b.PromptAlignment + b.ReadabilityTone + b.Uniqueness
}

// ValidationResult annotates a candidate. It never blocks a response.
type ValidationResult struct {
	Valid           bool                `json:"valid"`
	Issues          []string            `json:"issues"`
	Suggestions     []string            `json:"suggestions"`
	StructureScore  float64             `json:"structure_score"`
	ConfidenceScore float64             `json:"confidence_score"`
	Breakdown       ConfidenceBreakdown `json:"breakdown"`
	Compliance      KeywordCompliance   `json:"compliance"`
}

// ChangeType says how a version came to be.
type ChangeType string

// Change types.
const (
	ChangeGenerate   ChangeType = "generate"
	ChangeRefine     ChangeType = "refine"
	ChangeRegenerate ChangeType = "regenerate"
	ChangeSelect     ChangeType = "select"
	ChangeRevert     ChangeType = "revert"
)

// Artifact is a persisted generated text with its generation metadata.
type Artifact struct {
	Text            string            `json:"text"`
	Options         GenerationOptions `json:"options"`
	Mode            AnalysisMode      `json:"mode"`
	RepositoryRef   string            `json:"repository_ref,omitempty"`
	Strategy        StrategyName      `json:"strategy,omitempty"`
	Compliance      KeywordCompliance `json:"compliance"`
	StructureScore  float64           `json:"structure_score"`
	ConfidenceScore float64           `json:"confidence_score"`
}

// WordCount counts whitespace-separated words in the artifact text.
func (a Artifact) WordCount() int { return len(strings.Fields(a.Text)) }

// Version is one entry in a subject's append-only history.
type Version struct {
	ID                uuid.UUID  `json:"id"`
	SubjectID         string     `json:"subject_id"`
	Number            int        `json:"version"`
	Artifact          Artifact   `json:"artifact"`
	ChangeType        ChangeType `json:"change_type"`
	ChangeDescription string     `json:"change_description,omitempty"`
	RevertedFrom      *int       `json:"reverted_from,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// VersionDiff is a structural comparison of two versions.
type VersionDiff struct {
	SubjectID       string   `json:"subject_id"`
	From            int      `json:"from"`
	To              int      `json:"to"`
	WordCountDelta  int      `json:"word_count_delta"`
	ParagraphDelta  int      `json:"paragraph_delta"`
	KeywordsAdded   []string `json:"keywords_added,omitempty"`
	KeywordsRemoved []string `json:"keywords_removed,omitempty"`
	ExcludedAdded   []string `json:"excluded_added,omitempty"`
	ExcludedRemoved []string `json:"excluded_removed,omitempty"`
	ToneChanged     bool     `json:"tone_changed"`
	LengthChanged   bool     `json:"length_changed"`
	ScoreDelta      float64  `json:"score_delta"`
}

// ExperimentResult links one generation to its strategy and outcome.
type ExperimentResult struct {
	ID           uuid.UUID     `json:"id"`
	SubjectID    string        `json:"subject_id"`
	Strategy     StrategyName  `json:"strategy"`
	QualityScore float64       `json:"quality_score"`
	Selected     bool          `json:"selected"`
	Latency      time.Duration `json:"latency"`
	CreatedAt    time.Time     `json:"created_at"`
}

// StageStatus is the status of a streamed stage event.
type StageStatus string

// Stage statuses.
const (
	StatusPreparing  StageStatus = "preparing"
	StatusAnalyzing  StageStatus = "analyzing"
	StatusProcessing StageStatus = "processing"
	StatusGenerating StageStatus = "generating"
	StatusFinalizing StageStatus = "finalizing"
	StatusComplete   StageStatus = "complete"
	StatusError      StageStatus = "error"
)

// Terminal reports whether the status ends a stream.
func (s StageStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// StageEvent is one record of a streamed generation.
type StageEvent struct {
	Stage    string      `json:"stage"`
	Progress int         `json:"progress"`
	Status   StageStatus `json:"status"`
	Result   any         `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}
